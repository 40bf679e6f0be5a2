package book

import (
	"testing"

	"github.com/shopspring/decimal"

	"truex-fixmd/pkg/types"
)

func levels(pairs ...[2]string) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, types.PriceLevel{
			Price: decimal.RequireFromString(p[0]),
			Size:  decimal.RequireFromString(p[1]),
		})
	}
	return out
}

func TestApplyUpdateFullSnapshot(t *testing.T) {
	t.Parallel()
	b := New("BTC-PYUSD", DefaultConfig(), nil)

	err := b.ApplyUpdate(Update{
		Source:  "test",
		Bids:    levels([2]string{"100", "1"}, [2]string{"99", "2"}),
		Asks:    levels([2]string{"101", "1"}, [2]string{"102", "3"}),
		HasBids: true,
		HasAsks: true,
	})
	if err != nil {
		t.Fatalf("ApplyUpdate() error = %v", err)
	}

	snap := b.Latest()
	if snap.BestBid.String() != "100" || snap.BestAsk.String() != "101" {
		t.Fatalf("best bid/ask = %s/%s, want 100/101", snap.BestBid, snap.BestAsk)
	}
	if snap.IsPartialUpdate {
		t.Error("full snapshot must not be marked partial")
	}
	wantBidOrder := []string{"100", "99"}
	for i, want := range wantBidOrder {
		if snap.Bids[i].Price.String() != want {
			t.Errorf("bids[%d] = %s, want %s (strictly descending)", i, snap.Bids[i].Price, want)
		}
	}
}

// TestSevereInversionRejected is end-to-end scenario 3 from spec.md §8.
func TestSevereInversionRejected(t *testing.T) {
	t.Parallel()
	b := New("BTC-PYUSD", DefaultConfig(), nil)

	if err := b.ApplyUpdate(Update{
		Bids: levels([2]string{"100", "1"}, [2]string{"99", "2"}), HasBids: true,
		Asks: levels([2]string{"101", "1"}, [2]string{"102", "3"}), HasAsks: true,
	}); err != nil {
		t.Fatalf("first snapshot: ApplyUpdate() error = %v", err)
	}

	err := b.ApplyUpdate(Update{
		Bids: levels([2]string{"103", "1"}), HasBids: true,
	})
	if err == nil {
		t.Fatal("expected severe inversion to be rejected")
	}

	snap := b.Latest()
	if snap.BestBid.String() != "100" || snap.BestAsk.String() != "101" {
		t.Errorf("previous valid snapshot must survive a rejected update, got best_bid=%s best_ask=%s", snap.BestBid, snap.BestAsk)
	}
}

// TestPartialSideMerge is end-to-end scenario 4 from spec.md §8.
func TestPartialSideMerge(t *testing.T) {
	t.Parallel()
	b := New("BTC-PYUSD", DefaultConfig(), nil)

	if err := b.ApplyUpdate(Update{
		Bids: levels([2]string{"100", "1"}, [2]string{"99", "2"}), HasBids: true,
		Asks: levels([2]string{"101", "1"}, [2]string{"102", "3"}), HasAsks: true,
	}); err != nil {
		t.Fatalf("first snapshot: ApplyUpdate() error = %v", err)
	}

	if err := b.ApplyUpdate(Update{
		Asks: levels([2]string{"101.5", "2"}), HasAsks: true,
	}); err != nil {
		t.Fatalf("partial merge: ApplyUpdate() error = %v", err)
	}

	snap := b.Latest()
	if !snap.IsPartialUpdate {
		t.Error("one-sided update must be marked partial")
	}
	if snap.BestAsk.String() != "101.5" {
		t.Errorf("BestAsk = %s, want 101.5", snap.BestAsk)
	}
	if snap.BestBid.String() != "100" {
		t.Errorf("bids must be unchanged by an asks-only update, BestBid = %s, want 100", snap.BestBid)
	}
	if len(snap.Asks) != 1 {
		t.Errorf("asks side must be wholly replaced, got %d levels, want 1", len(snap.Asks))
	}
}

func TestInvertedWithinToleranceIsPublished(t *testing.T) {
	t.Parallel()
	b := New("BTC-PYUSD", DefaultConfig(), nil)

	err := b.ApplyUpdate(Update{
		Bids: levels([2]string{"100.3", "1"}), HasBids: true,
		Asks: levels([2]string{"100", "1"}), HasAsks: true,
	})
	if err != nil {
		t.Fatalf("inversion within tolerance should publish, got error: %v", err)
	}
	snap := b.Latest()
	if !snap.IsInverted {
		t.Error("expected IsInverted=true for a small inversion")
	}
}

func TestApplyDeltaIncremental(t *testing.T) {
	t.Parallel()
	b := New("BTC-PYUSD", DefaultConfig(), nil)

	_ = b.ApplyUpdate(Update{
		Bids: levels([2]string{"100", "1"}), HasBids: true,
		Asks: levels([2]string{"101", "1"}), HasAsks: true,
	})

	if err := b.ApplyDelta(Delta{Side: SideBid, Action: DeltaNew, Price: decimal.RequireFromString("100.5"), Size: decimal.RequireFromString("2")}); err != nil {
		t.Fatalf("ApplyDelta(new) error = %v", err)
	}
	if got := b.Latest().BestBid.String(); got != "100.5" {
		t.Errorf("BestBid after new delta = %s, want 100.5", got)
	}

	if err := b.ApplyDelta(Delta{Side: SideBid, Action: DeltaDelete, Price: decimal.RequireFromString("100.5")}); err != nil {
		t.Fatalf("ApplyDelta(delete) error = %v", err)
	}
	if got := b.Latest().BestBid.String(); got != "100" {
		t.Errorf("BestBid after delete delta = %s, want 100", got)
	}
}

func TestSubscribeReceivesCurrentSnapshotImmediately(t *testing.T) {
	t.Parallel()
	b := New("BTC-PYUSD", DefaultConfig(), nil)
	_ = b.ApplyUpdate(Update{
		Bids: levels([2]string{"100", "1"}), HasBids: true,
		Asks: levels([2]string{"101", "1"}), HasAsks: true,
	})

	received := make(chan *types.OrderBookSnapshot, 1)
	b.Subscribe(func(s *types.OrderBookSnapshot) { received <- s })

	select {
	case s := <-received:
		if s.Symbol != "BTC-PYUSD" {
			t.Errorf("Symbol = %q, want BTC-PYUSD", s.Symbol)
		}
	default:
		t.Fatal("expected an immediate delivery of the current snapshot on Subscribe")
	}
}

func TestSubscriberPanicDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	b := New("BTC-PYUSD", DefaultConfig(), nil)

	delivered := false
	b.Subscribe(func(*types.OrderBookSnapshot) { panic("boom") })
	b.Subscribe(func(*types.OrderBookSnapshot) { delivered = true })

	if err := b.ApplyUpdate(Update{
		Bids: levels([2]string{"100", "1"}), HasBids: true,
		Asks: levels([2]string{"101", "1"}), HasAsks: true,
	}); err != nil {
		t.Fatalf("ApplyUpdate() error = %v", err)
	}

	if !delivered {
		t.Error("a panicking subscriber must not prevent delivery to subsequent subscribers")
	}
}

func TestBookIdempotence(t *testing.T) {
	t.Parallel()
	b := New("BTC-PYUSD", DefaultConfig(), nil)
	u := Update{
		Bids: levels([2]string{"100", "1"}), HasBids: true,
		Asks: levels([2]string{"101", "1"}), HasAsks: true,
	}
	_ = b.ApplyUpdate(u)
	first := b.Latest()
	_ = b.ApplyUpdate(u)
	second := b.Latest()

	if first.BestBid.String() != second.BestBid.String() || first.BestAsk.String() != second.BestAsk.String() {
		t.Error("applying the same snapshot twice must yield the same published state")
	}
}

func TestNormalizeStandardShape(t *testing.T) {
	t.Parallel()
	u, err := Normalize("test", map[string]any{
		"bids": []any{[]any{"100", "1"}},
		"asks": []any{[]any{"101", "1"}},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !u.HasBids || !u.HasAsks {
		t.Error("expected both sides present")
	}
}

func TestNormalizeKrakenSnapshotShape(t *testing.T) {
	t.Parallel()
	u, err := Normalize("kraken", map[string]any{
		"bs": []any{map[string]any{"price": "100", "qty": "1"}},
		"as": []any{map[string]any{"price": "101", "qty": "1"}},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if u.Bids[0].Price.String() != "100" {
		t.Errorf("bid price = %s, want 100", u.Bids[0].Price)
	}
}

func TestNormalizeKrakenIncrementalShape(t *testing.T) {
	t.Parallel()
	u, err := Normalize("kraken", map[string]any{
		"b": []any{[]any{"100.5", "2"}},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !u.HasBids || u.HasAsks {
		t.Error("expected only bids present for a bid-only incremental payload")
	}
}

func TestNormalizeUnknownFormat(t *testing.T) {
	t.Parallel()
	_, err := Normalize("test", map[string]any{"weird": 1})
	if err == nil {
		t.Fatal("expected ErrUnknownFormat for an unrecognized payload shape")
	}
}
