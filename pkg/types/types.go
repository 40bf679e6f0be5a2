// Package types holds the data model shared across the FIX session, the
// order-book engine, and the order lifecycle manager.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the FIX tag 54 side of an order or a market-data entry.
type Side string

const (
	SideBuy  Side = "1"
	SideSell Side = "2"
)

// OrderKind is the FIX tag 40 OrdType, restricted to the subset the Core
// supports.
type OrderKind string

const (
	OrderKindMarket OrderKind = "1"
	OrderKindLimit  OrderKind = "2"
)

// TimeInForce is the FIX tag 59 value.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "1"
	TimeInForceIOC TimeInForce = "3"
	TimeInForceFOK TimeInForce = "4"
)

// OrderStatus is the local order lifecycle state, derived from FIX tag 39
// execution reports plus locally-tracked sub-states.
type OrderStatus string

const (
	OrderStatusPendingNew      OrderStatus = "PendingNew"
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelRequested OrderStatus = "CancelRequested"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
	OrderStatusExpired         OrderStatus = "Expired"
)

// SessionState is the C2 state machine's current state.
type SessionState string

const (
	SessionDisconnected     SessionState = "Disconnected"
	SessionConnecting       SessionState = "Connecting"
	SessionLogonSent        SessionState = "LogonSent"
	SessionLoggedIn         SessionState = "LoggedIn"
	SessionLogoutInProgress SessionState = "LogoutInProgress"
)

// Credentials is the immutable HMAC key material for a session. Never
// logged in clear.
type Credentials struct {
	Username string
	Secret   string
}

// PriceLevel is a single book level. Price and Size are preserved in full
// decimal precision; comparisons and keys use the canonical string form so
// two levels at "0.50" and "0.500" are treated as equal.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Key returns the canonical decimal string used to key this level for
// equality and map lookups.
func (p PriceLevel) Key() string {
	return p.Price.String()
}

// OrderBookSnapshot is the validated, published state of a symbol's book.
type OrderBookSnapshot struct {
	Symbol           string
	TimestampMS      int64
	Source           string
	Bids             []PriceLevel
	Asks             []PriceLevel
	HasCompleteBids  bool
	HasCompleteAsks  bool
	IsPartialUpdate  bool
	BestBid          decimal.Decimal
	BestBidSize      decimal.Decimal
	BestAsk          decimal.Decimal
	BestAskSize      decimal.Decimal
	MidPrice         decimal.Decimal
	Spread           decimal.Decimal
	SpreadPercentage decimal.Decimal
	IsInverted       bool
	IsVolatile       bool
	ValidationReason string
}

// Clone returns a deep copy of the snapshot, used on fan-out delivery so a
// subscriber mutating its copy cannot corrupt the core book.
func (s *OrderBookSnapshot) Clone() *OrderBookSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Bids = append([]PriceLevel(nil), s.Bids...)
	out.Asks = append([]PriceLevel(nil), s.Asks...)
	return &out
}

// Order is the local record of a client-initiated order, keyed primarily
// by ClientOrderID.
type Order struct {
	ClientOrderID   string
	ExchangeOrderID string
	ParentOrderID   string
	Symbol          string
	Side            Side
	Kind            OrderKind
	Qty             decimal.Decimal
	Price           decimal.Decimal
	HasPrice        bool
	TIF             TimeInForce
	Status          OrderStatus
	CreatedAt       time.Time
	LastUpdated     time.Time
	CumQty          decimal.Decimal
	AvgPx           decimal.Decimal
	LeavesQty       decimal.Decimal
	RejectReason    string
}

// SignificantFields is the subset of fields used to detect "legitimately
// repeated" orders under different ClientOrderIDs (spec's dedup-logging
// rule, not a rejection rule).
type SignificantFields struct {
	Side          Side
	Price         string
	Size          string
	Symbol        string
	Kind          OrderKind
	Status        OrderStatus
	ParentOrderID string
	ExchangeID    string
}

func (o *Order) Significant() SignificantFields {
	return SignificantFields{
		Side:          o.Side,
		Price:         o.Price.String(),
		Size:          o.Qty.String(),
		Symbol:        o.Symbol,
		Kind:          o.Kind,
		Status:        o.Status,
		ParentOrderID: o.ParentOrderID,
		ExchangeID:    o.ExchangeOrderID,
	}
}

// Fill is derived from an ExecutionReport carrying LastQty > 0.
type Fill struct {
	FillID     string
	OrderID    string
	Side       Side
	Price      decimal.Decimal
	Size       decimal.Decimal
	Timestamp  time.Time
	ExchangeID string
}

// Subscription tracks a single market-data request's lifecycle so it can
// be rehydrated after a reconnect.
type Subscription struct {
	MDReqID          string
	Symbol           string
	RequestedDepth   int
	SubscriptionType string
	StartedAt        time.Time
}
