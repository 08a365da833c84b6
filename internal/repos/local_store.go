package repos

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"aurelia/internal/domain"
)

// LocalStore persists per-session list snapshots as one JSON payload per
// (scope, kind). It is the storage backend for anonymous sessions and the
// write-through copy for authenticated ones.
type LocalStore struct{ db *sqlx.DB }

func NewLocalStore(db *sqlx.DB) *LocalStore { return &LocalStore{db: db} }

// Items reads a list snapshot. A missing row or a payload that fails to
// parse reads as an empty list, never as an error.
func (s *LocalStore) Items(scope string, kind domain.ListKind) ([]domain.LineItem, error) {
	var payload string
	err := s.db.Get(&payload, `SELECT payload FROM client_storage WHERE scope=? AND kind=?`, scope, string(kind))
	if err == sql.ErrNoRows {
		return []domain.LineItem{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []domain.LineItem
	if json.Unmarshal([]byte(payload), &items) != nil || items == nil {
		return []domain.LineItem{}, nil
	}
	return items, nil
}

// SaveItems rewrites the whole snapshot for (scope, kind).
func (s *LocalStore) SaveItems(scope string, kind domain.ListKind, items []domain.LineItem) error {
	if items == nil {
		items = []domain.LineItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO client_storage(scope,kind,payload,updated_at)
		VALUES(?,?,?,?)
		ON CONFLICT(scope,kind) DO UPDATE
		SET payload = excluded.payload, updated_at = excluded.updated_at
	`, scope, string(kind), string(payload), time.Now().UTC().Format(time.RFC3339))
	return err
}

// Clear drops the snapshot for (scope, kind). Clearing an absent row is a no-op.
func (s *LocalStore) Clear(scope string, kind domain.ListKind) error {
	_, err := s.db.Exec(`DELETE FROM client_storage WHERE scope=? AND kind=?`, scope, string(kind))
	return err
}
