package api

import (
	"table_order/internal/menu"

	"github.com/shopspring/decimal"
)

type paging struct {
	NextCursor string `json:"next_cursor"`
}

type listResponse[T any] struct {
	Items  []T    `json:"items"`
	Paging paging `json:"paging"`
}

type orderLine struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type orderRequest struct {
	TableID   string         `json:"table_id"`
	OrderType menu.OrderType `json:"order_type"`
	Items     []orderLine    `json:"items"`
}
