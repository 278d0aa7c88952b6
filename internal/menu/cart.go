package menu

import "github.com/shopspring/decimal"

// Totals sums quantity and amount over items with a positive count.
func Totals(items []Item) (int, decimal.Decimal) {
	quantity := 0
	amount := decimal.Zero
	for _, item := range items {
		if item.Count <= 0 {
			continue
		}
		quantity += item.Count
		amount = amount.Add(item.Subtotal())
	}
	return quantity, amount
}

// Dedupe keeps the first occurrence of every id.
func Dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
