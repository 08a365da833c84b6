package services

import "aurelia/internal/domain"

// MergeLists combines two snapshots of the same list. Items from a keep
// their relative order, with items only present in b appended afterward in
// b's order. When both sides carry an id, quantities combine as the max and
// b's display fields are taken as the fresher copy.
func MergeLists(a, b []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(a)+len(b))
	index := make(map[string]int, len(a))

	for _, it := range a {
		if it.ID == "" {
			continue
		}
		if pos, ok := index[it.ID]; ok {
			if it.Quantity > out[pos].Quantity {
				out[pos].Quantity = it.Quantity
			}
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}

	for _, it := range b {
		if it.ID == "" {
			continue
		}
		if pos, ok := index[it.ID]; ok {
			if q := out[pos].Quantity; q > it.Quantity {
				it.Quantity = q
			}
			out[pos] = it
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}

	return out
}
