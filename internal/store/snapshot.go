package store

import (
	"table_order/internal/menu"

	"github.com/shopspring/decimal"
)

// Snapshot is a consistent copy of the derived state, taken under one lock.
type Snapshot struct {
	Categories     []string        `json:"categories"`
	ActiveCategory string          `json:"active_category,omitempty"`
	OrderType      menu.OrderType  `json:"order_type"`
	Loading        bool            `json:"loading"`
	Message        string          `json:"message,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	TableID        string          `json:"table_id,omitempty"`
	Connected      bool            `json:"connected"`
	Connecting     bool            `json:"connecting"`
	Cart           []menu.Item     `json:"-"`
	TotalQuantity  int             `json:"total_quantity"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

func (s *Store) Snapshot() Snapshot {
	connecting := s.rt.IsConnecting()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Categories: append([]string(nil), s.categories...),
		OrderType:  menu.OrderTypes[s.orderType],
		Loading:    s.loading,
		Message:    s.message,
		SessionID:  s.sessionID,
		TableID:    s.tableID,
		Connected:  s.connected,
		Connecting: connecting,
		Cart:       s.cartLocked(),
	}
	if s.active >= 0 && s.active < len(s.categories) {
		snap.ActiveCategory = s.categories[s.active]
	}
	snap.TotalQuantity, snap.TotalAmount = menu.Totals(snap.Cart)
	return snap
}
