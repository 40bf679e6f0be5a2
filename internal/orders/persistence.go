package orders

import (
	"encoding/json"
	"fmt"

	"truex-fixmd/internal/kvstore"
	"truex-fixmd/pkg/types"
)

const orderKeyPrefix = "order:"

func orderKey(clOrdID string) []byte {
	return []byte(orderKeyPrefix + clOrdID)
}

// Checkpoint writes every tracked order to store, keyed by ClientOrderID,
// so a process restart can rehydrate the order index. Only rejected orders
// are removed from the Manager (see Reject); filled, cancelled and expired
// orders stay tracked and are written too. Keys written by an earlier
// checkpoint are never deleted here.
func (m *Manager) Checkpoint(store kvstore.Store) error {
	m.mu.RLock()
	snapshot := make([]*types.Order, 0, len(m.orders))
	for _, o := range m.orders {
		snapshot = append(snapshot, o)
	}
	m.mu.RUnlock()

	for _, o := range snapshot {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("orders: marshal %q: %w", o.ClientOrderID, err)
		}
		if err := store.Set(orderKey(o.ClientOrderID), data); err != nil {
			return fmt.Errorf("orders: persist %q: %w", o.ClientOrderID, err)
		}
	}
	return nil
}

// Restore rehydrates the order index from store, rebuilding the
// ExchangeOrderID reverse lookup and the significant-fields dedup set.
// Intended to run once at startup before any order traffic flows.
func (m *Manager) Restore(store kvstore.Store) error {
	rows, err := store.Scan([]byte(orderKeyPrefix))
	if err != nil {
		return fmt.Errorf("orders: scan: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, data := range rows {
		var o types.Order
		if err := json.Unmarshal(data, &o); err != nil {
			return fmt.Errorf("orders: unmarshal order: %w", err)
		}
		order := o
		m.orders[order.ClientOrderID] = &order
		if order.ExchangeOrderID != "" {
			m.byExchangeID[order.ExchangeOrderID] = order.ClientOrderID
		}
		m.seenSignificant[order.Significant()] = order.ClientOrderID
	}
	return nil
}
