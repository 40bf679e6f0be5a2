// Package orders implements the order lifecycle manager (C5):
// ClientOrderID-keyed storage with a derived ExchangeOrderID reverse
// lookup, the status state machine driven by execution reports, and
// reject classification.
package orders

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"truex-fixmd/internal/fixcodec"
	"truex-fixmd/pkg/types"
)

// ErrInvalidOrder wraps a failed Place input-validation check.
var ErrInvalidOrder = errors.New("orders: invalid order request")

// NewOrderRequest validates and constructs an Order per spec.md §4.5's
// Place invariants: a non-empty ClientOrderID, a positive Qty, Side ∈
// {Buy,Sell}, Kind ∈ {Market,Limit}, and Price present iff Kind=Limit.
// The returned order is not yet tracked by any Manager — pass it to Place.
func NewOrderRequest(clOrdID, symbol string, side types.Side, kind types.OrderKind, qty, price decimal.Decimal, hasPrice bool, tif types.TimeInForce) (*types.Order, error) {
	if clOrdID == "" {
		return nil, fmt.Errorf("%w: client_order_id is required", ErrInvalidOrder)
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: qty must be positive, got %s", ErrInvalidOrder, qty)
	}
	switch side {
	case types.SideBuy, types.SideSell:
	default:
		return nil, fmt.Errorf("%w: side must be Buy or Sell, got %q", ErrInvalidOrder, side)
	}
	switch kind {
	case types.OrderKindMarket, types.OrderKindLimit:
	default:
		return nil, fmt.Errorf("%w: kind must be Market or Limit, got %q", ErrInvalidOrder, kind)
	}
	if kind == types.OrderKindLimit && !hasPrice {
		return nil, fmt.Errorf("%w: price is required for a Limit order", ErrInvalidOrder)
	}
	if kind == types.OrderKindMarket && hasPrice {
		return nil, fmt.Errorf("%w: price must not be set for a Market order", ErrInvalidOrder)
	}

	return &types.Order{
		ClientOrderID: clOrdID,
		Symbol:        symbol,
		Side:          side,
		Kind:          kind,
		Qty:           qty,
		Price:         price,
		HasPrice:      hasPrice,
		TIF:           tif,
	}, nil
}

// ExecutionReport is the subset of a MsgType=8 message the order manager
// consumes.
type ExecutionReport struct {
	ClOrdID   string
	OrderID   string
	OrdStatus string
	ExecType  string
	CumQty    decimal.Decimal
	AvgPx     decimal.Decimal
	LeavesQty decimal.Decimal
	LastQty   decimal.Decimal
	LastPx    decimal.Decimal
	ExecID    string
	Text      string
	RejReason string
}

var statusByOrdStatus = map[string]types.OrderStatus{
	fixcodec.OrdStatusNew:             types.OrderStatusNew,
	fixcodec.OrdStatusPartiallyFilled: types.OrderStatusPartiallyFilled,
	fixcodec.OrdStatusFilled:          types.OrderStatusFilled,
	fixcodec.OrdStatusCanceled:        types.OrderStatusCancelled,
	fixcodec.OrdStatusRejected:        types.OrderStatusRejected,
	fixcodec.OrdStatusPendingNew:      types.OrderStatusPendingNew,
	fixcodec.OrdStatusExpired:         types.OrderStatusExpired,
}

func isOpenStatus(s types.OrderStatus) bool {
	switch s {
	case types.OrderStatusFilled, types.OrderStatusCancelled, types.OrderStatusRejected, types.OrderStatusExpired:
		return false
	default:
		return true
	}
}

// IsInvalidClientText reports whether reject text matches spec.md's fatal
// "invalid client" configuration-error classification, case-insensitive.
func IsInvalidClientText(text string) bool {
	return strings.Contains(strings.ToLower(text), "invalid client")
}

// Manager is the C5 order index: ClientOrderID is the primary key;
// ExchangeOrderID is indexed separately and always derived from an order
// already present in the primary map — there is no independently
// persisted reverse mapping, matching spec.md §4.5.
type Manager struct {
	mu             sync.RWMutex
	logger         *slog.Logger
	orders         map[string]*types.Order
	byExchangeID   map[string]string
	seenSignificant map[types.SignificantFields]string
}

// NewManager constructs an empty order index.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:          logger.With("component", "orders"),
		orders:          make(map[string]*types.Order),
		byExchangeID:    make(map[string]string),
		seenSignificant: make(map[types.SignificantFields]string),
	}
}

// Place inserts o with status PendingNew. If an order with the same
// ClientOrderID already exists, Place is a no-op that returns the
// existing order (added=false). Two distinct ClientOrderIDs sharing
// identical significant fields are both permitted, but logged.
func (m *Manager) Place(o *types.Order) (order *types.Order, added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.orders[o.ClientOrderID]; ok {
		return existing, false
	}

	now := time.Now()
	o.Status = types.OrderStatusPendingNew
	o.CreatedAt = now
	o.LastUpdated = now
	if o.CumQty.IsZero() {
		o.CumQty = decimal.Zero
	}
	o.LeavesQty = o.Qty

	sig := o.Significant()
	if prior, ok := m.seenSignificant[sig]; ok {
		m.logger.Info("order with repeated significant fields under a new client order id",
			"client_order_id", o.ClientOrderID, "prior_client_order_id", prior)
	}
	m.seenSignificant[sig] = o.ClientOrderID

	m.orders[o.ClientOrderID] = o
	return o, true
}

// Get returns the order for the given ClientOrderID.
func (m *Manager) Get(clOrdID string) (*types.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[clOrdID]
	return o, ok
}

// GetByExchangeID resolves an ExchangeOrderID back to its order via the
// derived reverse index.
func (m *Manager) GetByExchangeID(exchangeOrderID string) (*types.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clOrdID, ok := m.byExchangeID[exchangeOrderID]
	if !ok {
		return nil, false
	}
	o, ok := m.orders[clOrdID]
	return o, ok
}

// GetOpenOrders returns every order whose status has not reached a
// terminal state.
func (m *Manager) GetOpenOrders() []*types.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var open []*types.Order
	for _, o := range m.orders {
		if isOpenStatus(o.Status) {
			open = append(open, o)
		}
	}
	return open
}

// RequestCancel transitions an order to CancelRequested locally; the
// caller is responsible for emitting the OrderCancelReplaceRequest with
// its own newClOrdID, which is not recorded on the returned order.
// Terminal Cancelled is only reached once the
// execution report confirms, via ApplyExecutionReport.
func (m *Manager) RequestCancel(clOrdID, newClOrdID string) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[clOrdID]
	if !ok {
		return nil, fmt.Errorf("orders: unknown client order id %q", clOrdID)
	}
	o.Status = types.OrderStatusCancelRequested
	o.LastUpdated = time.Now()
	return o, nil
}

// ApplyExecutionReport updates the order referenced by er.ClOrdID per
// spec.md §4.5's field mapping, records the ExchangeOrderID on first
// sight, and returns a Fill when LastQty > 0.
func (m *Manager) ApplyExecutionReport(er ExecutionReport) (*types.Order, *types.Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[er.ClOrdID]
	if !ok {
		return nil, nil, fmt.Errorf("orders: execution report for unknown client order id %q", er.ClOrdID)
	}

	if o.ExchangeOrderID == "" && er.OrderID != "" {
		o.ExchangeOrderID = er.OrderID
		m.byExchangeID[er.OrderID] = o.ClientOrderID
	}

	if status, ok := statusByOrdStatus[er.OrdStatus]; ok {
		o.Status = status
	}
	o.CumQty = er.CumQty
	o.AvgPx = er.AvgPx
	o.LeavesQty = er.LeavesQty
	o.LastUpdated = time.Now()

	var fill *types.Fill
	if er.LastQty.IsPositive() {
		fill = &types.Fill{
			FillID:     er.ExecID,
			OrderID:    o.ClientOrderID,
			Side:       o.Side,
			Price:      er.LastPx,
			Size:       er.LastQty,
			Timestamp:  time.Now(),
			ExchangeID: o.ExchangeOrderID,
		}
	}

	return o, fill, nil
}

// Reject records a terminal rejection. fatal is true when the text
// matches spec.md's "invalid client" fatal-auth classification; the order
// is removed from active tracking in both cases.
func (m *Manager) Reject(clOrdID, reason string) (order *types.Order, fatal bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[clOrdID]
	if !ok {
		return nil, false, fmt.Errorf("orders: reject for unknown client order id %q", clOrdID)
	}
	o.Status = types.OrderStatusRejected
	o.RejectReason = reason
	o.LastUpdated = time.Now()
	delete(m.orders, clOrdID)
	if o.ExchangeOrderID != "" {
		delete(m.byExchangeID, o.ExchangeOrderID)
	}
	return o, IsInvalidClientText(reason), nil
}
