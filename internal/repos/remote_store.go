package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"aurelia/internal/domain"
)

// RemoteStore persists one list document per (user, kind) in Redis. Writes
// rewrite the whole document guarded by a version counter; a lost race
// surfaces as ErrConflict instead of silently overwriting.
type RemoteStore struct {
	client   *redis.Client
	fallback *FallbackCache
	timeout  time.Duration
}

func NewRemoteStore(client *redis.Client, fallback *FallbackCache, timeout time.Duration) *RemoteStore {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RemoteStore{client: client, fallback: fallback, timeout: timeout}
}

// OpenRedis connects and pings so startup fails fast on a bad address.
func OpenRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

func listKey(kind domain.ListKind, userID string) string {
	return fmt.Sprintf("aurelia:list:%s:%s", kind, userID)
}

func emptyDoc(userID string) *domain.RemoteList {
	return &domain.RemoteList{Items: []domain.LineItem{}, UserID: userID}
}

// Fetch returns the user's document for a list kind. A missing or corrupted
// document reads as an empty list at version 0. When the store cannot be
// reached in time, the fallback cache copy (or an empty list) is returned
// alongside ErrOffline so the caller can degrade instead of failing.
func (s *RemoteStore) Fetch(ctx context.Context, sc domain.SessionContext, kind domain.ListKind) (*domain.RemoteList, error) {
	if !sc.Authenticated() {
		return nil, domain.ErrNotLoggedIn
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.client.Get(ctx, listKey(kind, sc.UserID)).Result()
	if err == redis.Nil {
		return emptyDoc(sc.UserID), nil
	}
	if err != nil {
		doc := emptyDoc(sc.UserID)
		if items, ok := s.fallback.Get(sc.UserID, kind); ok {
			doc.Items = items
		}
		return doc, fmt.Errorf("%w: %v", domain.ErrOffline, err)
	}

	var doc domain.RemoteList
	if json.Unmarshal([]byte(raw), &doc) != nil {
		return emptyDoc(sc.UserID), nil
	}
	if doc.Items == nil {
		doc.Items = []domain.LineItem{}
	}
	s.fallback.Put(sc.UserID, kind, doc.Items)
	return &doc, nil
}

// Save rewrites the whole document, expecting the stored version to still be
// expectedVersion. A concurrent writer surfaces as ErrConflict; an unreachable
// store returns the attempted document alongside ErrOffline, with the fallback
// cache already holding the attempted items.
func (s *RemoteStore) Save(ctx context.Context, sc domain.SessionContext, kind domain.ListKind, items []domain.LineItem, expectedVersion int64) (*domain.RemoteList, error) {
	if !sc.Authenticated() {
		return nil, domain.ErrNotLoggedIn
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	doc := &domain.RemoteList{
		Items:     items,
		UpdatedAt: time.Now().UTC(),
		UserID:    sc.UserID,
		Version:   expectedVersion + 1,
	}
	// Cache the attempted items first so an outage mid-write still leaves
	// them readable.
	s.fallback.Put(sc.UserID, kind, items)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := listKey(kind, sc.UserID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		var curVersion int64
		if err != redis.Nil {
			var existing domain.RemoteList
			if json.Unmarshal([]byte(raw), &existing) == nil {
				curVersion = existing.Version
			}
		}
		if curVersion != expectedVersion {
			return domain.ErrConflict
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return doc, nil
	case errors.Is(err, domain.ErrConflict) || err == redis.TxFailedErr:
		return nil, domain.ErrConflict
	default:
		return doc, fmt.Errorf("%w: %v", domain.ErrOffline, err)
	}
}
