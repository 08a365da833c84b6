// Package gateway implements the catalog gateway: per-category partition
// documents and the capped stock notification log, both kept in SQLite.
package gateway

import (
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"aurelia/internal/domain"
)

// MaxNotifications caps the alert log; appending past the cap evicts the
// oldest entries.
const MaxNotifications = 100

type Store struct{ db *sqlx.DB }

func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	if err := s.seedIfEmpty(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS partitions(
  category TEXT PRIMARY KEY,
  products TEXT NOT NULL,            -- JSON array of catalog items
  version INTEGER NOT NULL DEFAULT 1,
  updated_at TEXT
);

-- The whole notification log persists as one JSON blob, newest first
CREATE TABLE IF NOT EXISTS notifications(
  id INTEGER PRIMARY KEY CHECK (id = 1),
  doc TEXT NOT NULL
);
`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) seedIfEmpty() error {
	var n int
	if err := s.db.Get(&n, `SELECT COUNT(*) FROM partitions`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo catalog partitions")

	seed := map[string][]domain.CatalogItem{
		"rings": {
			{ID: "ring-aurora", Name: "Aurora Band", Price: 120.00, Image: "products/ring-aurora/main.jpg", Stock: 12},
			{ID: "ring-ember", Name: "Ember Solitaire", Price: 450.00, Image: "products/ring-ember/main.jpg", Stock: 6},
			{ID: "ring-tide", Name: "Tide Stack Ring", Price: 85.00, Image: "products/ring-tide/main.jpg", Stock: 3},
		},
		"necklaces": {
			{ID: "neck-solstice", Name: "Solstice Chain", Price: 220.00, Image: "products/neck-solstice/main.jpg", Stock: 10},
			{ID: "neck-lumen", Name: "Lumen Pendant", Price: 180.00, Image: "products/neck-lumen/main.jpg", Stock: 5},
		},
		"earrings": {
			{ID: "earr-petal", Name: "Petal Studs", Price: 95.00, Image: "products/earr-petal/main.jpg", Stock: 14},
			{ID: "earr-comet", Name: "Comet Drops", Price: 140.00, Image: "products/earr-comet/main.jpg", Stock: 2},
		},
		"bracelets": {
			{ID: "brac-meridian", Name: "Meridian Cuff", Price: 260.00, Image: "products/brac-meridian/main.jpg", Stock: 8},
			{ID: "brac-willow", Name: "Willow Charm", Price: 110.00, Image: "products/brac-willow/main.jpg", Stock: 0},
		},
		"general": {
			{ID: "gift-card-50", Name: "Gift Card", Price: 50.00, Image: "products/gift-card-50/main.jpg", Stock: 500},
		},
	}

	now := time.Now().UTC()
	tx := s.db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for category, products := range seed {
		for i := range products {
			products[i].Category = category
			products[i].UpdatedAt = now
		}
		payload, err := json.Marshal(products)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO partitions(category,products,version,updated_at) VALUES(?,?,1,?)`,
			category, string(payload), now.Format(time.RFC3339)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Partition reads one whole partition document.
func (s *Store) Partition(category string) (*domain.PartitionDoc, error) {
	var row struct {
		Products string `db:"products"`
		Version  int64  `db:"version"`
	}
	err := s.db.Get(&row, `SELECT products, version FROM partitions WHERE category=?`, category)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPartitionNotFound
	}
	if err != nil {
		return nil, err
	}
	var products []domain.CatalogItem
	if json.Unmarshal([]byte(row.Products), &products) != nil || products == nil {
		products = []domain.CatalogItem{}
	}
	return &domain.PartitionDoc{Category: category, Products: products, Version: row.Version}, nil
}

// Categories lists every stored partition name.
func (s *Store) Categories() ([]string, error) {
	var out []string
	err := s.db.Select(&out, `SELECT category FROM partitions ORDER BY category`)
	return out, err
}

// ReplacePartition rewrites a partition's whole product list, guarded by the
// version the writer read. A stale version returns ErrConflict.
func (s *Store) ReplacePartition(req domain.StockUpdateRequest) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var cur int64
	err = tx.Get(&cur, `SELECT version FROM partitions WHERE category=?`, req.Category)
	if err == sql.ErrNoRows {
		return domain.ErrPartitionNotFound
	}
	if err != nil {
		return err
	}
	if cur != req.Version {
		return domain.ErrConflict
	}

	payload, err := json.Marshal(req.Products)
	if err != nil {
		return err
	}
	res, err := tx.Exec(`
		UPDATE partitions SET products=?, version=version+1, updated_at=?
		WHERE category=? AND version=?
	`, string(payload), time.Now().UTC().Format(time.RFC3339), req.Category, req.Version)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrConflict
	}

	return tx.Commit()
}

// UpsertPartition writes a partition unconditionally, bumping its version.
// Admin restocks go through here.
func (s *Store) UpsertPartition(category string, products []domain.CatalogItem) error {
	if products == nil {
		products = []domain.CatalogItem{}
	}
	payload, err := json.Marshal(products)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO partitions(category,products,version,updated_at) VALUES(?,?,1,?)
		ON CONFLICT(category) DO UPDATE
		SET products = excluded.products, version = partitions.version + 1, updated_at = excluded.updated_at
	`, category, string(payload), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) readAlerts(q sqlx.Queryer) []domain.StockAlert {
	var doc string
	err := sqlx.Get(q, &doc, `SELECT doc FROM notifications WHERE id=1`)
	if err != nil {
		return []domain.StockAlert{}
	}
	var alerts []domain.StockAlert
	if json.Unmarshal([]byte(doc), &alerts) != nil || alerts == nil {
		return []domain.StockAlert{}
	}
	return alerts
}

func (s *Store) writeAlerts(tx *sqlx.Tx, alerts []domain.StockAlert) error {
	payload, err := json.Marshal(alerts)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO notifications(id,doc) VALUES(1,?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, string(payload))
	return err
}

// Alerts returns the notification log, newest first.
func (s *Store) Alerts() ([]domain.StockAlert, error) {
	return s.readAlerts(s.db), nil
}

// AppendAlert prepends one alert and evicts past the cap.
func (s *Store) AppendAlert(alert domain.StockAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	alerts := append([]domain.StockAlert{alert}, s.readAlerts(tx)...)
	if len(alerts) > MaxNotifications {
		alerts = alerts[:MaxNotifications]
	}
	if err := s.writeAlerts(tx, alerts); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkRead flags one alert as read. Returns false when the id is unknown.
func (s *Store) MarkRead(id string) (bool, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	alerts := s.readAlerts(tx)
	found := false
	for i := range alerts {
		if alerts[i].ID == id {
			alerts[i].Read = true
			found = true
		}
	}
	if !found {
		return false, nil
	}
	if err := s.writeAlerts(tx, alerts); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// MarkAllRead flags the whole log as read.
func (s *Store) MarkAllRead() error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	alerts := s.readAlerts(tx)
	for i := range alerts {
		alerts[i].Read = true
	}
	if err := s.writeAlerts(tx, alerts); err != nil {
		return err
	}
	return tx.Commit()
}
