package menu

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrUnknownOrderType = errors.New("unknown order type")

// Item is a menu entry as cached per category. Count and Selected are local
// cart state and never come from the API.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Count       int             `json:"-"`
	Selected    bool            `json:"-"`
}

// SetCount clamps n at zero and keeps Selected equal to Count > 0.
func (i *Item) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	i.Count = n
	i.Selected = n > 0
}

// Toggle flips selection. Selecting forces a count of at least one,
// deselecting zeroes it.
func (i *Item) Toggle() {
	if i.Selected {
		i.SetCount(0)
		return
	}
	if i.Count < 1 {
		i.SetCount(1)
		return
	}
	i.SetCount(i.Count)
}

// Subtotal is Count x Price.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Count)))
}

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeout  OrderType = "takeout"
	OrderTypeDelivery OrderType = "delivery"
)

// OrderTypes is indexed by the order-type index the UI selects with.
var OrderTypes = []OrderType{OrderTypeDineIn, OrderTypeTakeout, OrderTypeDelivery}

func OrderTypeAt(index int) (OrderType, error) {
	if index < 0 || index >= len(OrderTypes) {
		return "", fmt.Errorf("%w: index %d", ErrUnknownOrderType, index)
	}
	return OrderTypes[index], nil
}
