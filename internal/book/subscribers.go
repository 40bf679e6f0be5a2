package book

import (
	"log/slog"
	"sync"

	"truex-fixmd/pkg/types"
)

// Handle identifies a registered subscriber for later unsubscription.
type Handle uint64

// Callback receives a deep copy of every published snapshot. It must not
// block; the publisher calls it synchronously and a slow subscriber stalls
// delivery to every subscriber after it.
type Callback func(*types.OrderBookSnapshot)

// registry is the C7 Subscription Fabric: an ordered set of callbacks
// delivered a deep copy of every published snapshot, with panic isolation
// so one misbehaving subscriber cannot stop delivery to the rest. Shaped
// after the teacher's WebSocket Hub (register/unregister/broadcast), here
// specialized to in-process callbacks instead of a network fan-out.
type registry struct {
	mu      sync.Mutex
	next    Handle
	order   []Handle
	byID    map[Handle]Callback
	logger  *slog.Logger
	current *types.OrderBookSnapshot
}

func newRegistry(logger *slog.Logger) *registry {
	return &registry{
		byID:   make(map[Handle]Callback),
		logger: logger,
	}
}

// Subscribe registers cb and, if a snapshot has already been published,
// delivers it immediately so a late joiner is not left without state.
func (r *registry) Subscribe(cb Callback) Handle {
	r.mu.Lock()
	r.next++
	h := r.next
	r.byID[h] = cb
	r.order = append(r.order, h)
	current := r.current
	r.mu.Unlock()

	if current != nil {
		r.deliverOne(cb, current.Clone())
	}
	return h
}

// Unsubscribe removes a subscriber by handle. A no-op if already removed.
func (r *registry) Unsubscribe(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, h)
	for i, id := range r.order {
		if id == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// publish delivers a deep copy of snap to every subscriber, in
// registration order, catching any panic so it cannot interrupt delivery
// to the rest.
func (r *registry) publish(snap *types.OrderBookSnapshot) {
	r.mu.Lock()
	r.current = snap
	order := append([]Handle(nil), r.order...)
	callbacks := make([]Callback, 0, len(order))
	for _, h := range order {
		if cb, ok := r.byID[h]; ok {
			callbacks = append(callbacks, cb)
		}
	}
	r.mu.Unlock()

	for _, cb := range callbacks {
		r.deliverOne(cb, snap.Clone())
	}
}

func (r *registry) deliverOne(cb Callback, snap *types.OrderBookSnapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.Error("subscriber callback panicked", "panic", rec)
			}
		}
	}()
	cb(snap)
}
