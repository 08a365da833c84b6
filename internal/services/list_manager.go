package services

import (
	"context"
	"errors"

	"aurelia/internal/domain"
	"aurelia/internal/repos"
)

// mutateAttempts bounds how often a read-modify-write is replayed after
// losing a version race before the conflict is surfaced to the caller.
const mutateAttempts = 3

// OpResult is the outcome of a manager operation. Offline is set when the
// operation succeeded against the fallback path because the remote store
// could not be reached in time.
type OpResult struct {
	Items   []domain.LineItem
	Offline bool
}

// ListManager runs one list kind (cart or wishlist) for whichever session a
// call hands it. Authenticated sessions read and write the remote store;
// anonymous sessions use the local store. The selection happens on every
// call, never cached.
type ListManager struct {
	Kind    domain.ListKind
	Local   *repos.LocalStore
	Remote  *repos.RemoteStore
	Refresh func(domain.RefreshEvent)
}

func (m *ListManager) notify(openPanel bool) {
	if m.Refresh != nil {
		m.Refresh(domain.RefreshEvent{List: m.Kind, OpenPanel: openPanel})
	}
}

// mutate round-trips the whole list through fn against the selected store.
// Remote writes are version-guarded; a lost race is replayed with a fresh
// read up to mutateAttempts times.
func (m *ListManager) mutate(ctx context.Context, sc domain.SessionContext, fn func([]domain.LineItem) []domain.LineItem) (OpResult, error) {
	if sc.Authenticated() {
		var lastErr error
		for attempt := 0; attempt < mutateAttempts; attempt++ {
			doc, err := m.Remote.Fetch(ctx, sc, m.Kind)
			offline := errors.Is(err, domain.ErrOffline)
			if err != nil && !offline {
				return OpResult{}, err
			}
			saved, err := m.Remote.Save(ctx, sc, m.Kind, fn(doc.Items), doc.Version)
			switch {
			case err == nil:
				return OpResult{Items: saved.Items}, nil
			case errors.Is(err, domain.ErrConflict):
				lastErr = err
				continue
			case errors.Is(err, domain.ErrOffline):
				return OpResult{Items: saved.Items, Offline: true}, nil
			default:
				return OpResult{}, err
			}
		}
		return OpResult{}, lastErr
	}

	items, err := m.Local.Items(sc.SessionID, m.Kind)
	if err != nil {
		return OpResult{}, err
	}
	next := fn(items)
	if err := m.Local.SaveItems(sc.SessionID, m.Kind, next); err != nil {
		return OpResult{}, err
	}
	return OpResult{Items: next}, nil
}

// Items returns the session's active list.
func (m *ListManager) Items(ctx context.Context, sc domain.SessionContext) (OpResult, error) {
	if sc.Authenticated() {
		doc, err := m.Remote.Fetch(ctx, sc, m.Kind)
		if errors.Is(err, domain.ErrOffline) {
			return OpResult{Items: doc.Items, Offline: true}, nil
		}
		if err != nil {
			return OpResult{}, err
		}
		return OpResult{Items: doc.Items}, nil
	}
	items, err := m.Local.Items(sc.SessionID, m.Kind)
	if err != nil {
		return OpResult{}, err
	}
	return OpResult{Items: items}, nil
}

// Add appends item with the given quantity, or accumulates the quantity onto
// an entry that already carries the same id. Adding to the cart asks the UI
// to reveal its panel.
func (m *ListManager) Add(ctx context.Context, sc domain.SessionContext, item domain.LineItem, qty int) (OpResult, error) {
	if item.ID == "" {
		return OpResult{}, domain.ErrInvalidItem
	}
	if qty < 1 {
		qty = 1
	}
	res, err := m.mutate(ctx, sc, func(items []domain.LineItem) []domain.LineItem {
		for i := range items {
			if items[i].ID == item.ID {
				items[i].Quantity += qty
				return items
			}
		}
		item.Quantity = qty
		return append(items, item)
	})
	if err != nil {
		return res, err
	}
	m.notify(m.Kind == domain.KindCart)
	return res, nil
}

// Remove drops the entry with the given id. Removing an absent id is a no-op.
func (m *ListManager) Remove(ctx context.Context, sc domain.SessionContext, id string) (OpResult, error) {
	res, err := m.mutate(ctx, sc, func(items []domain.LineItem) []domain.LineItem {
		out := make([]domain.LineItem, 0, len(items))
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out
	})
	if err != nil {
		return res, err
	}
	m.notify(false)
	return res, nil
}

// UpdateQuantity sets an entry's quantity, clamped to a minimum of 1.
// Deletion goes through Remove, never through a zero quantity here.
func (m *ListManager) UpdateQuantity(ctx context.Context, sc domain.SessionContext, id string, qty int) (OpResult, error) {
	if qty < 1 {
		qty = 1
	}
	res, err := m.mutate(ctx, sc, func(items []domain.LineItem) []domain.LineItem {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = qty
			}
		}
		return items
	})
	if err != nil {
		return res, err
	}
	m.notify(false)
	return res, nil
}

// Increment raises an entry's quantity by one.
func (m *ListManager) Increment(ctx context.Context, sc domain.SessionContext, id string) (OpResult, error) {
	res, err := m.mutate(ctx, sc, func(items []domain.LineItem) []domain.LineItem {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity++
			}
		}
		return items
	})
	if err != nil {
		return res, err
	}
	m.notify(false)
	return res, nil
}

// Decrement lowers an entry's quantity by one but never below 1; at 1 the
// call is a no-op rather than a removal.
func (m *ListManager) Decrement(ctx context.Context, sc domain.SessionContext, id string) (OpResult, error) {
	res, err := m.mutate(ctx, sc, func(items []domain.LineItem) []domain.LineItem {
		for i := range items {
			if items[i].ID == id && items[i].Quantity > 1 {
				items[i].Quantity--
			}
		}
		return items
	})
	if err != nil {
		return res, err
	}
	m.notify(false)
	return res, nil
}

// Clear empties the active list and persists the empty list.
func (m *ListManager) Clear(ctx context.Context, sc domain.SessionContext) (OpResult, error) {
	res, err := m.mutate(ctx, sc, func([]domain.LineItem) []domain.LineItem {
		return []domain.LineItem{}
	})
	if err != nil {
		return res, err
	}
	m.notify(false)
	return res, nil
}

// Total sums price times quantity over the active list.
func (m *ListManager) Total(ctx context.Context, sc domain.SessionContext) (float64, error) {
	res, err := m.Items(ctx, sc)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, it := range res.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total, nil
}

// ItemCount sums quantities over the active list.
func (m *ListManager) ItemCount(ctx context.Context, sc domain.SessionContext) (int, error) {
	res, err := m.Items(ctx, sc)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range res.Items {
		n += it.Quantity
	}
	return n, nil
}

// SyncOnLogin folds the session's anonymous list into the user's remote one.
// Local items keep their order in front, duplicate ids take the max quantity
// with the remote copy's display fields, and the local snapshot is cleared so
// the remote copy becomes the single active list. With nothing persisted
// locally the remote list is adopted as-is and nothing is written.
func (m *ListManager) SyncOnLogin(ctx context.Context, sc domain.SessionContext) (OpResult, error) {
	if !sc.Authenticated() {
		return OpResult{}, domain.ErrNotLoggedIn
	}
	local, err := m.Local.Items(sc.SessionID, m.Kind)
	if err != nil {
		return OpResult{}, err
	}

	var lastErr error
	for attempt := 0; attempt < mutateAttempts; attempt++ {
		doc, err := m.Remote.Fetch(ctx, sc, m.Kind)
		offline := errors.Is(err, domain.ErrOffline)
		if err != nil && !offline {
			return OpResult{}, err
		}
		if len(local) == 0 {
			m.notify(false)
			return OpResult{Items: doc.Items, Offline: offline}, nil
		}

		saved, err := m.Remote.Save(ctx, sc, m.Kind, MergeLists(local, doc.Items), doc.Version)
		if errors.Is(err, domain.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrOffline) {
			return OpResult{}, err
		}
		offline = offline || errors.Is(err, domain.ErrOffline)

		if err := m.Local.Clear(sc.SessionID, m.Kind); err != nil {
			return OpResult{}, err
		}
		m.notify(false)
		return OpResult{Items: saved.Items, Offline: offline}, nil
	}
	return OpResult{}, lastErr
}

// SyncOnLogout switches the active list back to the local snapshot. The
// remote copy stays exactly as the user left it.
func (m *ListManager) SyncOnLogout(ctx context.Context, sc domain.SessionContext) (OpResult, error) {
	items, err := m.Local.Items(sc.SessionID, m.Kind)
	if err != nil {
		return OpResult{}, err
	}
	m.notify(false)
	return OpResult{Items: items}, nil
}
