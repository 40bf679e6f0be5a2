// Package events defines the polymorphic event family surfaced to
// consumers of the data plane: strategy plug-ins, dashboards, or any other
// external collaborator that observes the Core without participating in
// its internal task ownership.
package events

import (
	"time"

	"github.com/shopspring/decimal"

	"truex-fixmd/pkg/types"
)

// Kind discriminates the Event union.
type Kind string

const (
	KindConnected            Kind = "connected"
	KindDisconnected         Kind = "disconnected"
	KindFatalAuthError       Kind = "fatal_auth_error"
	KindBookSnapshot         Kind = "book_snapshot"
	KindTrade                Kind = "trade"
	KindOrderAck             Kind = "order_ack"
	KindOrderRejected        Kind = "order_rejected"
	KindOrderFilled          Kind = "order_filled"
	KindSubscriptionRejected Kind = "subscription_rejected"
)

// Event is the single type delivered to consumers; Kind selects which of
// the optional payload fields is populated.
type Event struct {
	Kind      Kind
	Timestamp time.Time

	// Connected / Disconnected / FatalAuthError
	Reason string

	// BookSnapshot
	Symbol   string
	Snapshot *types.OrderBookSnapshot

	// Trade
	Price decimal.Decimal
	Size  decimal.Decimal
	Side  types.Side

	// OrderAck / OrderRejected / OrderFilled
	Order *types.Order
	Fill  *types.Fill

	// SubscriptionRejected
	RejectReason string
}

func Connected() Event {
	return Event{Kind: KindConnected, Timestamp: time.Now()}
}

func Disconnected(reason string) Event {
	return Event{Kind: KindDisconnected, Timestamp: time.Now(), Reason: reason}
}

func FatalAuthError(reason string) Event {
	return Event{Kind: KindFatalAuthError, Timestamp: time.Now(), Reason: reason}
}

func BookSnapshot(symbol string, snap *types.OrderBookSnapshot) Event {
	return Event{Kind: KindBookSnapshot, Timestamp: time.Now(), Symbol: symbol, Snapshot: snap}
}

func Trade(symbol string, price, size decimal.Decimal, side types.Side) Event {
	return Event{Kind: KindTrade, Timestamp: time.Now(), Symbol: symbol, Price: price, Size: size, Side: side}
}

func OrderAck(o *types.Order) Event {
	return Event{Kind: KindOrderAck, Timestamp: time.Now(), Order: o}
}

func OrderRejected(o *types.Order, reason string) Event {
	return Event{Kind: KindOrderRejected, Timestamp: time.Now(), Order: o, RejectReason: reason}
}

func OrderFilled(o *types.Order, f *types.Fill) Event {
	return Event{Kind: KindOrderFilled, Timestamp: time.Now(), Order: o, Fill: f}
}

func SubscriptionRejected(symbol, reason string) Event {
	return Event{Kind: KindSubscriptionRejected, Timestamp: time.Now(), Symbol: symbol, RejectReason: reason}
}
