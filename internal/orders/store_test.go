package orders

import (
	"testing"

	"github.com/shopspring/decimal"

	"truex-fixmd/internal/fixcodec"
	"truex-fixmd/pkg/types"
)

func newOrder(clOrdID string) *types.Order {
	return &types.Order{
		ClientOrderID: clOrdID,
		Symbol:        "BTC-PYUSD",
		Side:          types.SideBuy,
		Kind:          types.OrderKindLimit,
		Qty:           decimal.RequireFromString("5"),
		Price:         decimal.RequireFromString("100"),
		HasPrice:      true,
		TIF:           types.TimeInForceGTC,
	}
}

func TestPlaceDedup(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	first, added := m.Place(newOrder("ORDER_001"))
	if !added {
		t.Fatal("first Place() should report added=true")
	}
	second, added := m.Place(newOrder("ORDER_001"))
	if added {
		t.Error("duplicate ClientOrderID should report added=false")
	}
	if first != second {
		t.Error("duplicate Place() should return the existing order")
	}
}

func TestApplyExecutionReportFillAndLookup(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	m.Place(newOrder("ORDER_001"))

	order, fill, err := m.ApplyExecutionReport(ExecutionReport{
		ClOrdID:   "ORDER_001",
		OrderID:   "EXCH-1",
		OrdStatus: fixcodec.OrdStatusPartiallyFilled,
		CumQty:    decimal.RequireFromString("2"),
		LeavesQty: decimal.RequireFromString("3"),
		LastQty:   decimal.RequireFromString("2"),
		LastPx:    decimal.RequireFromString("100"),
		ExecID:    "EXEC-1",
	})
	if err != nil {
		t.Fatalf("ApplyExecutionReport() error = %v", err)
	}
	if order.ExchangeOrderID != "EXCH-1" {
		t.Errorf("ExchangeOrderID = %q, want EXCH-1", order.ExchangeOrderID)
	}
	if order.Status != types.OrderStatusPartiallyFilled {
		t.Errorf("Status = %q, want PartiallyFilled", order.Status)
	}
	if fill == nil {
		t.Fatal("expected a Fill for LastQty > 0")
	}
	if got := order.CumQty.Add(order.LeavesQty); got.String() != "5" {
		t.Errorf("cum_qty + leaves_qty = %s, want 5 (original qty)", got)
	}

	byExchange, ok := m.GetByExchangeID("EXCH-1")
	if !ok || byExchange.ClientOrderID != "ORDER_001" {
		t.Error("GetByExchangeID should resolve back to ORDER_001")
	}
}

// TestRejectInvalidClient is end-to-end scenario 5 from spec.md §8.
func TestRejectInvalidClient(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	m.Place(newOrder("ORDER_001"))

	_, fatal, err := m.Reject("ORDER_001", "Invalid client")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if !fatal {
		t.Error("expected fatal=true for 'Invalid client' reject text")
	}
	if _, ok := m.Get("ORDER_001"); ok {
		t.Error("rejected order must be removed from active tracking")
	}
}

func TestRejectNormalBusinessReason(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	m.Place(newOrder("ORDER_002"))

	_, fatal, err := m.Reject("ORDER_002", "Order exceeds limit")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if fatal {
		t.Error("expected fatal=false for a normal business reject")
	}
}

func TestNewOrderRequestValidation(t *testing.T) {
	t.Parallel()
	qty := decimal.RequireFromString("5")
	price := decimal.RequireFromString("100")

	cases := []struct {
		name     string
		clOrdID  string
		side     types.Side
		kind     types.OrderKind
		qty      decimal.Decimal
		hasPrice bool
		wantErr  bool
	}{
		{"valid limit", "ORDER_1", types.SideBuy, types.OrderKindLimit, qty, true, false},
		{"valid market", "ORDER_2", types.SideSell, types.OrderKindMarket, qty, false, false},
		{"empty client order id", "", types.SideBuy, types.OrderKindLimit, qty, true, true},
		{"zero qty", "ORDER_3", types.SideBuy, types.OrderKindLimit, decimal.Zero, true, true},
		{"bad side", "ORDER_4", types.Side("9"), types.OrderKindLimit, qty, true, true},
		{"bad kind", "ORDER_5", types.SideBuy, types.OrderKind("9"), qty, true, true},
		{"limit missing price", "ORDER_6", types.SideBuy, types.OrderKindLimit, qty, false, true},
		{"market with price", "ORDER_7", types.SideBuy, types.OrderKindMarket, qty, true, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewOrderRequest(tc.clOrdID, "BTC-PYUSD", tc.side, tc.kind, tc.qty, price, tc.hasPrice, types.TimeInForceGTC)
			if tc.wantErr && err == nil {
				t.Error("expected an error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCancelReplaceConfirmedIsTerminal(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	m.Place(newOrder("ORDER_003"))

	if _, err := m.RequestCancel("ORDER_003", "ORDER_003-C1"); err != nil {
		t.Fatalf("RequestCancel() error = %v", err)
	}
	if o, _ := m.Get("ORDER_003"); o.Status != types.OrderStatusCancelRequested {
		t.Errorf("Status after RequestCancel = %q, want CancelRequested", o.Status)
	}

	order, _, err := m.ApplyExecutionReport(ExecutionReport{
		ClOrdID:   "ORDER_003",
		OrdStatus: fixcodec.OrdStatusCanceled,
		LeavesQty: decimal.Zero,
	})
	if err != nil {
		t.Fatalf("ApplyExecutionReport() error = %v", err)
	}
	if order.Status != types.OrderStatusCancelled {
		t.Errorf("Status = %q, want Cancelled", order.Status)
	}
	if !order.LeavesQty.IsZero() {
		t.Errorf("LeavesQty = %s, want 0 after confirmed cancel", order.LeavesQty)
	}
}
