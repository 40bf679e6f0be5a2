package marketdata

import (
	"testing"
	"time"

	"truex-fixmd/internal/book"
	"truex-fixmd/internal/fixcodec"
)

func snapshotMessage(t *testing.T) *fixcodec.Message {
	t.Helper()
	frame := fixcodec.Encode([]fixcodec.Field{
		{fixcodec.TagMsgType, fixcodec.MsgTypeMarketDataSnapshot},
		{fixcodec.TagSenderCompID, "TRUEX_UAT_OE"},
		{fixcodec.TagTargetCompID, "CLI"},
		{fixcodec.TagMsgSeqNum, "2"},
		{fixcodec.TagSendingTime, fixcodec.SendingTime(time.Now())},
		{fixcodec.TagMDReqID, "MDR1"},
		{fixcodec.TagNoMDEntries, "3"},
		{fixcodec.TagMDEntryType, fixcodec.MDEntryTypeBid},
		{fixcodec.TagMDEntryPx, "100"},
		{fixcodec.TagMDEntrySize, "1"},
		{fixcodec.TagMDEntryType, fixcodec.MDEntryTypeOffer},
		{fixcodec.TagMDEntryPx, "101"},
		{fixcodec.TagMDEntrySize, "2"},
		{fixcodec.TagMDEntryType, fixcodec.MDEntryTypeTrade},
		{fixcodec.TagMDEntryPx, "100.5"},
		{fixcodec.TagMDEntrySize, "0.5"},
	})
	msg, err := fixcodec.Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return msg
}

func TestParseSnapshot(t *testing.T) {
	t.Parallel()
	msg := snapshotMessage(t)

	update, trades, err := ParseSnapshot(msg)
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}
	if !update.HasBids || !update.HasAsks {
		t.Fatal("snapshot must carry both sides complete")
	}
	if len(update.Bids) != 1 || update.Bids[0].Price.String() != "100" {
		t.Errorf("bids = %+v, want a single level at 100", update.Bids)
	}
	if len(update.Asks) != 1 || update.Asks[0].Price.String() != "101" {
		t.Errorf("asks = %+v, want a single level at 101", update.Asks)
	}
	if len(trades) != 1 || trades[0].Price.String() != "100.5" {
		t.Errorf("trades = %+v, want a single entry at 100.5", trades)
	}
}

func TestParseIncremental(t *testing.T) {
	t.Parallel()
	frame := fixcodec.Encode([]fixcodec.Field{
		{fixcodec.TagMsgType, fixcodec.MsgTypeMarketDataIncremental},
		{fixcodec.TagSenderCompID, "TRUEX_UAT_OE"},
		{fixcodec.TagTargetCompID, "CLI"},
		{fixcodec.TagMsgSeqNum, "3"},
		{fixcodec.TagSendingTime, fixcodec.SendingTime(time.Now())},
		{fixcodec.TagNoMDEntries, "2"},
		{fixcodec.TagMDUpdateAction, fixcodec.MDUpdateActionNew},
		{fixcodec.TagMDEntryType, fixcodec.MDEntryTypeBid},
		{fixcodec.TagMDEntryPx, "99.5"},
		{fixcodec.TagMDEntrySize, "3"},
		{fixcodec.TagMDUpdateAction, fixcodec.MDUpdateActionDelete},
		{fixcodec.TagMDEntryType, fixcodec.MDEntryTypeOffer},
		{fixcodec.TagMDEntryPx, "102"},
		{fixcodec.TagMDEntrySize, "0"},
	})
	msg, err := fixcodec.Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	deltas, err := ParseIncremental(msg)
	if err != nil {
		t.Fatalf("ParseIncremental() error = %v", err)
	}
	if len(deltas) != 2 {
		t.Fatalf("got %d deltas, want 2", len(deltas))
	}
	if deltas[0].Side != book.SideBid || deltas[0].Action != book.DeltaNew {
		t.Errorf("deltas[0] = %+v, want bid/new", deltas[0])
	}
	if deltas[1].Side != book.SideAsk || deltas[1].Action != book.DeltaDelete {
		t.Errorf("deltas[1] = %+v, want ask/delete", deltas[1])
	}
}

func TestParseReject(t *testing.T) {
	t.Parallel()
	frame := fixcodec.Encode([]fixcodec.Field{
		{fixcodec.TagMsgType, fixcodec.MsgTypeMarketDataReject},
		{fixcodec.TagSenderCompID, "TRUEX_UAT_OE"},
		{fixcodec.TagTargetCompID, "CLI"},
		{fixcodec.TagMsgSeqNum, "4"},
		{fixcodec.TagSendingTime, fixcodec.SendingTime(time.Now())},
		{fixcodec.TagMDReqID, "MDR1"},
		{fixcodec.TagText, "Unknown symbol"},
	})
	msg, err := fixcodec.Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	reject := ParseReject(msg)
	if reject.MDReqID != "MDR1" || reject.Reason != "Unknown symbol" {
		t.Errorf("ParseReject() = %+v, want MDReqID=MDR1 Reason='Unknown symbol'", reject)
	}
}
