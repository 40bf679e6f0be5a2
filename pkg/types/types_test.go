package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderBookSnapshotClone(t *testing.T) {
	t.Parallel()

	src := &OrderBookSnapshot{
		Symbol: "BTC-PYUSD",
		Bids:   []PriceLevel{{Price: decimal.RequireFromString("100"), Size: decimal.RequireFromString("1")}},
		Asks:   []PriceLevel{{Price: decimal.RequireFromString("101"), Size: decimal.RequireFromString("2")}},
	}

	clone := src.Clone()
	clone.Bids[0].Size = decimal.RequireFromString("999")

	if src.Bids[0].Size.String() == "999" {
		t.Fatal("mutating the clone's levels must not affect the source snapshot")
	}
	if clone.Symbol != src.Symbol {
		t.Errorf("Symbol = %q, want %q", clone.Symbol, src.Symbol)
	}
}

func TestOrderBookSnapshotCloneNil(t *testing.T) {
	t.Parallel()

	var s *OrderBookSnapshot
	if got := s.Clone(); got != nil {
		t.Errorf("Clone() on nil receiver = %v, want nil", got)
	}
}

func TestPriceLevelKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b PriceLevel
		want bool
	}{
		{"equal canonical forms", PriceLevel{Price: decimal.RequireFromString("0.50")}, PriceLevel{Price: decimal.RequireFromString("0.500")}, true},
		{"different prices", PriceLevel{Price: decimal.RequireFromString("0.50")}, PriceLevel{Price: decimal.RequireFromString("0.51")}, false},
	}

	for _, tt := range tests {
		if got := tt.a.Key() == tt.b.Key(); got != tt.want {
			t.Errorf("%s: Key() equality = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOrderSignificant(t *testing.T) {
	t.Parallel()

	o := &Order{
		ClientOrderID: "ORDER_001",
		Side:          SideBuy,
		Price:         decimal.RequireFromString("100"),
		Qty:           decimal.RequireFromString("5"),
		Symbol:        "BTC-PYUSD",
		Kind:          OrderKindLimit,
		Status:        OrderStatusNew,
	}
	other := &Order{
		ClientOrderID: "ORDER_002",
		Side:          SideBuy,
		Price:         decimal.RequireFromString("100"),
		Qty:           decimal.RequireFromString("5"),
		Symbol:        "BTC-PYUSD",
		Kind:          OrderKindLimit,
		Status:        OrderStatusNew,
	}

	if o.Significant() != other.Significant() {
		t.Error("two distinct ClientOrderIDs with identical significant fields should compare equal")
	}
}
