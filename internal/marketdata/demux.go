// Package marketdata implements the market-data demux (C3): turning
// MsgType=W snapshots and MsgType=X incremental refreshes into order-book
// events, and MsgType=Y rejects into subscription-lifecycle signals.
package marketdata

import (
	"fmt"

	"github.com/shopspring/decimal"

	"truex-fixmd/internal/book"
	"truex-fixmd/internal/fixcodec"
	"truex-fixmd/pkg/types"
)

// TradeEntry is a single MDEntryType=2 entry. ParseSnapshot returns the
// trade entries of a snapshot beside its book update; ParseIncremental
// skips trade entries. Trades are not aggregated into the book, and no
// Trade event is emitted for them.
type TradeEntry struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// ParseSnapshot decodes a MsgType=W message's NoMDEntries (tag 268) group
// into a full-snapshot book.Update, plus any trade entries found
// alongside the bid/offer entries.
func ParseSnapshot(msg *fixcodec.Message) (book.Update, []TradeEntry, error) {
	entries := fixcodec.EntriesByLeadTag(msg.Fields, fixcodec.TagMDEntryType)

	var bids, asks []types.PriceLevel
	var trades []TradeEntry

	for _, e := range entries {
		entryType, _ := fixcodec.EntryGet(e, fixcodec.TagMDEntryType)
		px, sz, err := entryPriceSize(e)
		if err != nil {
			return book.Update{}, nil, err
		}

		switch entryType {
		case fixcodec.MDEntryTypeBid:
			bids = append(bids, types.PriceLevel{Price: px, Size: sz})
		case fixcodec.MDEntryTypeOffer:
			asks = append(asks, types.PriceLevel{Price: px, Size: sz})
		case fixcodec.MDEntryTypeTrade:
			trades = append(trades, TradeEntry{Price: px, Size: sz})
		}
	}

	return book.Update{
		Source:  "fix-snapshot",
		Bids:    bids,
		Asks:    asks,
		HasBids: true,
		HasAsks: true,
	}, trades, nil
}

// ParseIncremental decodes a MsgType=X message's repeating entries into an
// ordered list of book.Delta, to be applied one at a time via
// Book.ApplyDelta.
func ParseIncremental(msg *fixcodec.Message) ([]book.Delta, error) {
	entries := fixcodec.EntriesByLeadTag(msg.Fields, fixcodec.TagMDUpdateAction)
	deltas := make([]book.Delta, 0, len(entries))

	for _, e := range entries {
		entryType, _ := fixcodec.EntryGet(e, fixcodec.TagMDEntryType)
		actionStr, ok := fixcodec.EntryGet(e, fixcodec.TagMDUpdateAction)
		if !ok {
			return nil, fmt.Errorf("marketdata: incremental entry missing MDUpdateAction")
		}

		var side book.Side
		switch entryType {
		case fixcodec.MDEntryTypeBid:
			side = book.SideBid
		case fixcodec.MDEntryTypeOffer:
			side = book.SideAsk
		default:
			continue // trade/other entry types carry no book mutation
		}

		action, err := mapAction(actionStr)
		if err != nil {
			return nil, err
		}

		px, sz, err := entryPriceSize(e)
		if err != nil {
			return nil, err
		}

		deltas = append(deltas, book.Delta{Side: side, Action: action, Price: px, Size: sz})
	}

	return deltas, nil
}

// Reject describes a MsgType=Y MarketDataRequestReject.
type Reject struct {
	MDReqID string
	Reason  string
}

// ParseReject decodes a MsgType=Y message.
func ParseReject(msg *fixcodec.Message) Reject {
	mdReqID, _ := msg.Get(fixcodec.TagMDReqID)
	reason, _ := msg.Get(fixcodec.TagText)
	if reason == "" {
		reason, _ = msg.Get(fixcodec.TagMDReqRejReason)
	}
	return Reject{MDReqID: mdReqID, Reason: reason}
}

func entryPriceSize(e []fixcodec.Field) (px, sz decimal.Decimal, err error) {
	pxStr, ok := fixcodec.EntryGet(e, fixcodec.TagMDEntryPx)
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("marketdata: entry missing MDEntryPx")
	}
	szStr, ok := fixcodec.EntryGet(e, fixcodec.TagMDEntrySize)
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("marketdata: entry missing MDEntrySize")
	}
	px, err = decimal.NewFromString(pxStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("marketdata: bad MDEntryPx %q: %w", pxStr, err)
	}
	sz, err = decimal.NewFromString(szStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("marketdata: bad MDEntrySize %q: %w", szStr, err)
	}
	return px, sz, nil
}

func mapAction(raw string) (book.DeltaAction, error) {
	switch raw {
	case fixcodec.MDUpdateActionNew:
		return book.DeltaNew, nil
	case fixcodec.MDUpdateActionChange:
		return book.DeltaChange, nil
	case fixcodec.MDUpdateActionDelete:
		return book.DeltaDelete, nil
	default:
		return "", fmt.Errorf("marketdata: unknown MDUpdateAction %q", raw)
	}
}
