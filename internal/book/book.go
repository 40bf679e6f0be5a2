// Package book implements the centralized order-book engine (C4): payload
// normalization, full-snapshot and partial-merge apply semantics, strict
// sort ordering, inversion validation, derived fields, a bounded
// volatility-scoring buffer, and the C7 subscriber fan-out.
package book

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"truex-fixmd/pkg/types"
)

// ErrBookInvalid is returned (and the update dropped) when a book fails
// validation — an empty side that was expected to be complete, a
// non-finite/non-positive best price, or an inversion beyond tolerance.
var ErrBookInvalid = errors.New("book: invalid update")

// ErrUnknownFormat is returned by Normalize when a raw payload matches
// none of the three recognized shapes.
var ErrUnknownFormat = errors.New("book: unknown payload format")

// Side distinguishes bid/ask for a Delta.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// DeltaAction is the FIX MDUpdateAction (tag 279) applied to a single
// price level.
type DeltaAction string

const (
	DeltaNew    DeltaAction = "new"
	DeltaChange DeltaAction = "change"
	DeltaDelete DeltaAction = "delete"
)

// Delta is a single incremental-refresh mutation, applied in the order the
// market-data demux (C3) produced them.
type Delta struct {
	Side   Side
	Action DeltaAction
	Price  decimal.Decimal
	Size   decimal.Decimal
}

// Update is a normalized payload ready for ApplyUpdate: a full snapshot if
// both sides are present, a partial merge if only one is.
type Update struct {
	Source  string
	Bids    []types.PriceLevel
	Asks    []types.PriceLevel
	HasBids bool
	HasAsks bool
}

// Config holds the tunables spec.md §6 names as configuration keys.
type Config struct {
	BufferSize            int
	InversionTolerancePct decimal.Decimal // e.g. decimal.NewFromFloat(1.0) for 1%
	VolatilityThreshold   decimal.Decimal // e.g. decimal.NewFromFloat(0.5)
}

// DefaultConfig matches spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:            20,
		InversionTolerancePct: decimal.NewFromFloat(1.0),
		VolatilityThreshold:   decimal.NewFromFloat(0.5),
	}
}

// Book owns the authoritative two-sided state for one symbol. One Book
// instance is the "per-symbol task" spec.md §5 describes; all mutation
// happens under mu, and subscriber delivery happens synchronously inside
// the same call as publication.
type Book struct {
	mu     sync.Mutex
	symbol string
	cfg    Config
	logger *slog.Logger

	bids map[string]types.PriceLevel
	asks map[string]types.PriceLevel

	hasSeenBids bool
	hasSeenAsks bool

	buffer *snapshotBuffer
	subs   *registry
	last   *types.OrderBookSnapshot
}

// New constructs a Book for symbol.
func New(symbol string, cfg Config, logger *slog.Logger) *Book {
	if logger == nil {
		logger = slog.Default()
	}
	return &Book{
		symbol: symbol,
		cfg:    cfg,
		logger: logger.With("component", "book", "symbol", symbol),
		bids:   make(map[string]types.PriceLevel),
		asks:   make(map[string]types.PriceLevel),
		buffer: newSnapshotBuffer(cfg.BufferSize),
		subs:   newRegistry(logger.With("component", "book-subscribers", "symbol", symbol)),
	}
}

// Subscribe registers cb for deep-copy delivery of every future published
// snapshot, and immediately delivers the current one if any.
func (b *Book) Subscribe(cb Callback) Handle {
	return b.subs.Subscribe(cb)
}

// Unsubscribe removes a previously registered callback.
func (b *Book) Unsubscribe(h Handle) {
	b.subs.Unsubscribe(h)
}

// Latest returns the most recently published snapshot, or nil. Until both
// sides have been seen, that snapshot is one-sided and carries no best
// prices or derived fields.
func (b *Book) Latest() *types.OrderBookSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last.Clone()
}

// ApplyUpdate applies a normalized full-snapshot or partial-merge update,
// per spec.md §4.4's apply semantics, and publishes the result unless
// validation rejects it.
func (b *Book) ApplyUpdate(u Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldBids, oldAsks := b.bids, b.asks
	oldHasBids, oldHasAsks := b.hasSeenBids, b.hasSeenAsks

	if u.HasBids {
		b.bids = levelMap(u.Bids)
		b.hasSeenBids = true
	}
	if u.HasAsks {
		b.asks = levelMap(u.Asks)
		b.hasSeenAsks = true
	}

	isPartial := !(u.HasBids && u.HasAsks)
	if err := b.validateAndPublish(isPartial, u.Source); err != nil {
		b.bids, b.asks = oldBids, oldAsks
		b.hasSeenBids, b.hasSeenAsks = oldHasBids, oldHasAsks
		return err
	}
	return nil
}

// ApplyDelta applies a single incremental-refresh mutation (C3's
// MsgType=X entries, applied one at a time, in order).
func (b *Book) ApplyDelta(d Delta) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	side := b.bids
	if d.Side == SideAsk {
		side = b.asks
	}

	oldBids, oldAsks := cloneLevelMap(b.bids), cloneLevelMap(b.asks)
	oldHasBids, oldHasAsks := b.hasSeenBids, b.hasSeenAsks

	key := d.Price.String()
	switch d.Action {
	case DeltaDelete:
		delete(side, key)
	default: // New or Change are both upserts at this price level
		side[key] = types.PriceLevel{Price: d.Price, Size: d.Size}
	}
	if d.Side == SideBid {
		b.hasSeenBids = true
	} else {
		b.hasSeenAsks = true
	}

	if err := b.validateAndPublish(false, "fix-incremental"); err != nil {
		b.bids, b.asks = oldBids, oldAsks
		b.hasSeenBids, b.hasSeenAsks = oldHasBids, oldHasAsks
		return err
	}
	return nil
}

// validateAndPublish assumes mu is held and the maps already reflect the
// candidate mutation. On success it appends to the buffer and fans out;
// on failure it returns ErrBookInvalid and leaves the maps for the caller
// to roll back.
func (b *Book) validateAndPublish(isPartial bool, source string) error {
	bids := sortedLevels(b.bids, true)
	asks := sortedLevels(b.asks, false)

	snap := &types.OrderBookSnapshot{
		Symbol:          b.symbol,
		TimestampMS:     time.Now().UnixMilli(),
		Source:          source,
		Bids:            bids,
		Asks:            asks,
		HasCompleteBids: b.hasSeenBids,
		HasCompleteAsks: b.hasSeenAsks,
		IsPartialUpdate: isPartial,
	}

	if (len(bids) == 0 && b.hasSeenBids) || (len(asks) == 0 && b.hasSeenAsks) {
		b.logger.Warn("dropping update that leaves a side empty")
		return ErrBookInvalid
	}

	if len(bids) == 0 || len(asks) == 0 {
		// First-ever (or still one-sided) update: established, but not
		// yet validatable for inversion/derived fields.
		b.last = snap
		b.buffer.push(snap)
		b.subs.publish(snap)
		return nil
	}

	bestBid, bestAsk := bids[0].Price, asks[0].Price
	if !bestBid.IsPositive() || !bestAsk.IsPositive() {
		b.logger.Warn("dropping update with non-positive best price")
		return ErrBookInvalid
	}

	snap.BestBid, snap.BestBidSize = bestBid, bids[0].Size
	snap.BestAsk, snap.BestAskSize = bestAsk, asks[0].Size

	if bestBid.GreaterThanOrEqual(bestAsk) {
		inversionPct := bestBid.Sub(bestAsk).Abs().Div(bestAsk).Mul(decimal.NewFromInt(100))
		if inversionPct.GreaterThan(b.cfg.InversionTolerancePct) {
			b.logger.Warn("rejecting update: inversion exceeds tolerance",
				"best_bid", bestBid, "best_ask", bestAsk, "inversion_pct", inversionPct)
			return ErrBookInvalid
		}
		snap.IsInverted = true
		snap.ValidationReason = "inverted within tolerance"
		b.logger.Info("publishing inverted book within tolerance",
			"best_bid", bestBid, "best_ask", bestAsk, "inversion_pct", inversionPct)
	}

	snap.MidPrice = bestBid.Add(bestAsk).Div(decimal.NewFromInt(2))
	snap.Spread = bestAsk.Sub(bestBid)
	if !snap.MidPrice.IsZero() {
		snap.SpreadPercentage = snap.Spread.Div(snap.MidPrice)
	}

	if prior := b.buffer.recent(); len(prior) >= 3 {
		mean := meanSpread(prior)
		if !mean.IsZero() {
			deviation := snap.Spread.Sub(mean).Abs().Div(mean)
			snap.IsVolatile = deviation.GreaterThan(b.cfg.VolatilityThreshold)
		}
	}

	b.last = snap
	b.buffer.push(snap)
	b.subs.publish(snap)
	return nil
}

func meanSpread(snaps []*types.OrderBookSnapshot) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range snaps {
		sum = sum.Add(s.Spread)
	}
	return sum.Div(decimal.NewFromInt(int64(len(snaps))))
}

func levelMap(levels []types.PriceLevel) map[string]types.PriceLevel {
	m := make(map[string]types.PriceLevel, len(levels))
	for _, l := range levels {
		m[l.Key()] = l // ties coalesced: last write wins
	}
	return m
}

func cloneLevelMap(m map[string]types.PriceLevel) map[string]types.PriceLevel {
	out := make(map[string]types.PriceLevel, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedLevels(m map[string]types.PriceLevel, descending bool) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
