package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"truex-fixmd/internal/fixcodec"
	"truex-fixmd/internal/orders"
	"truex-fixmd/pkg/types"
)

// PlaceOrder validates a new order request, records it in the order index
// with status PendingNew, and emits the NewOrderSingle through the
// session's single sequencing point. The client order id is generated
// here so callers never have to coordinate one themselves.
func (e *Engine) PlaceOrder(symbol string, side types.Side, kind types.OrderKind, qty, price decimal.Decimal, hasPrice bool, tif types.TimeInForce) (*types.Order, error) {
	clOrdID := uuid.NewString()
	req, err := orders.NewOrderRequest(clOrdID, symbol, side, kind, qty, price, hasPrice, tif)
	if err != nil {
		return nil, err
	}

	order, _ := e.orders.Place(req)

	params := fixcodec.NewOrderParams{
		ClOrdID:     clOrdID,
		Symbol:      symbol,
		Side:        string(side),
		OrderQty:    qty.String(),
		OrdType:     string(kind),
		Price:       price.String(),
		HasPrice:    hasPrice,
		TimeInForce: string(tif),
		PartyID:     e.cfg.FIX.SenderCompID,
	}
	if _, err := e.session.Emit(func(h fixcodec.Header) []byte {
		params.Header = h
		return fixcodec.BuildNewOrderSingle(params)
	}); err != nil {
		return order, fmt.Errorf("engine: emit NewOrderSingle: %w", err)
	}
	return order, nil
}

// CancelOrder marks clOrdID CancelRequested locally and emits a
// CancelReplaceRequest with OrderQty=0, modeling a pure cancel per
// spec.md §4.5. Confirmation arrives as an execution report routed
// through handleExecutionReport.
func (e *Engine) CancelOrder(clOrdID string) (*types.Order, error) {
	existing, ok := e.orders.Get(clOrdID)
	if !ok {
		return nil, fmt.Errorf("engine: cancel unknown client order id %q", clOrdID)
	}

	newClOrdID := uuid.NewString()
	order, err := e.orders.RequestCancel(clOrdID, newClOrdID)
	if err != nil {
		return nil, err
	}

	params := fixcodec.CancelReplaceParams{
		ClOrdID:     newClOrdID,
		OrigClOrdID: clOrdID,
		Symbol:      existing.Symbol,
		Side:        string(existing.Side),
		OrderQty:    "0",
	}
	if _, err := e.session.Emit(func(h fixcodec.Header) []byte {
		params.Header = h
		return fixcodec.BuildOrderCancelReplace(params)
	}); err != nil {
		return order, fmt.Errorf("engine: emit OrderCancelReplace: %w", err)
	}
	return order, nil
}

// ReplaceOrder requests a size change for clOrdID, re-quoting it at
// newQty via CancelReplaceRequest. Like CancelOrder, the local order
// isn't updated to the new quantity until the execution report confirms.
func (e *Engine) ReplaceOrder(clOrdID string, newQty decimal.Decimal) (*types.Order, error) {
	if !newQty.IsPositive() {
		return nil, fmt.Errorf("%w: qty must be positive, got %s", orders.ErrInvalidOrder, newQty)
	}

	existing, ok := e.orders.Get(clOrdID)
	if !ok {
		return nil, fmt.Errorf("engine: replace unknown client order id %q", clOrdID)
	}

	newClOrdID := uuid.NewString()
	order, err := e.orders.RequestCancel(clOrdID, newClOrdID)
	if err != nil {
		return nil, err
	}

	params := fixcodec.CancelReplaceParams{
		ClOrdID:     newClOrdID,
		OrigClOrdID: clOrdID,
		Symbol:      existing.Symbol,
		Side:        string(existing.Side),
		OrderQty:    newQty.String(),
	}
	if _, err := e.session.Emit(func(h fixcodec.Header) []byte {
		params.Header = h
		return fixcodec.BuildOrderCancelReplace(params)
	}); err != nil {
		return order, fmt.Errorf("engine: emit OrderCancelReplace: %w", err)
	}
	return order, nil
}
