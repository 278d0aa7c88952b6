package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"table_order/internal/menu"
	"table_order/internal/store"

	"github.com/shopspring/decimal"
)

type resultItem struct {
	ID       string          `json:"item_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Count    int             `json:"count"`
	Selected bool            `json:"selected"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type cartResult struct {
	Items         []resultItem    `json:"items"`
	TotalQuantity int             `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

func toResultItems(items []menu.Item) []resultItem {
	out := make([]resultItem, 0, len(items))
	for _, item := range items {
		out = append(out, resultItem{
			ID:       item.ID,
			Name:     item.Name,
			Category: item.Category,
			Price:    item.Price,
			Count:    item.Count,
			Selected: item.Selected,
			Subtotal: item.Subtotal(),
		})
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCategories(w io.Writer, snap store.Snapshot) {
	if len(snap.Categories) == 0 {
		fmt.Fprintln(w, "- (no categories configured)")
		return
	}
	for i, name := range snap.Categories {
		marker := " "
		if name == snap.ActiveCategory {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d) %s\n", marker, i+1, name)
	}
}

func writeItems(w io.Writer, category string, items []menu.Item) {
	fmt.Fprintf(w, "%s:\n", category)
	if len(items) == 0 {
		fmt.Fprintln(w, "- (nothing loaded)")
		return
	}
	for i, item := range items {
		mark := "[ ]"
		if item.Selected {
			mark = "[x]"
		}
		fmt.Fprintf(w, "%d) %s %s (id=%s, price=%s", i+1, mark, item.Name, item.ID, item.Price.StringFixed(2))
		if item.Count > 0 {
			fmt.Fprintf(w, ", qty=%d", item.Count)
		}
		fmt.Fprintln(w, ")")
	}
}

func writeCart(w io.Writer, snap store.Snapshot) {
	fmt.Fprintln(w, "Cart:")
	if len(snap.Cart) == 0 {
		fmt.Fprintln(w, "- (empty)")
		return
	}
	for _, item := range snap.Cart {
		fmt.Fprintf(w, "- %s x%d = %s\n", item.Name, item.Count, item.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(w, "Total: %d items, %s\n", snap.TotalQuantity, snap.TotalAmount.StringFixed(2))
}

func writeStatus(w io.Writer, snap store.Snapshot) {
	connection := "offline"
	switch {
	case snap.Connected:
		connection = "online"
	case snap.Connecting:
		connection = "connecting"
	}

	fmt.Fprintf(w, "- connection: %s\n", connection)
	fmt.Fprintf(w, "- table: %s\n", orDash(snap.TableID))
	fmt.Fprintf(w, "- session: %s\n", orDash(snap.SessionID))
	fmt.Fprintf(w, "- category: %s\n", orDash(snap.ActiveCategory))
	fmt.Fprintf(w, "- order type: %s (%s)\n", snap.OrderType, orderTypeList())
	if snap.Loading {
		fmt.Fprintln(w, "- loading menu...")
	}
	if strings.TrimSpace(snap.Message) != "" {
		fmt.Fprintf(w, "- message: %s\n", snap.Message)
	}
}

func writeOrder(w io.Writer, resp map[string]any) {
	fmt.Fprintln(w, "Order placed.")
	for _, key := range []string{"order_number", "status", "total_amount"} {
		if v, ok := resp[key]; ok {
			fmt.Fprintf(w, "- %s: %v\n", key, v)
		}
	}
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
