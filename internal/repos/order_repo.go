package repos

import (
	"github.com/jmoiron/sqlx"

	"aurelia/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

type OrderItemRow struct {
	ProductID string  `db:"product_id" json:"productId"`
	Name      string  `db:"name" json:"name"`
	Qty       int     `db:"qty" json:"qty"`
	Price     float64 `db:"price" json:"price"`
	Subtotal  float64 `db:"subtotal" json:"subtotal"`
}

type OutcomeRow struct {
	ProductID     string `db:"product_id" json:"productId"`
	Category      string `db:"category" json:"category"`
	Requested     int    `db:"requested" json:"requested"`
	PreviousStock int    `db:"previous_stock" json:"previousStock"`
	NewStock      int    `db:"new_stock" json:"newStock"`
	Attempts      int    `db:"attempts" json:"attempts"`
	OK            bool   `db:"ok" json:"ok"`
	Error         string `db:"error" json:"error,omitempty"`
}

// Create inserts the order header plus its lines in one transaction.
func (r *OrderRepo) Create(o domain.Order, items []domain.LineItem) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
	  INSERT INTO orders(id, session_id, user_id, payment_id, total, status, created_at)
	  VALUES(?, ?, NULLIF(?,''), ?, ?, ?, CURRENT_TIMESTAMP)
	`, o.ID, o.SessionID, o.UserID, o.PaymentID, o.Total, o.Status); err != nil {
		return err
	}

	for _, it := range items {
		if _, err := tx.Exec(`
		  INSERT INTO order_items(order_id, product_id, name, price, qty)
		  VALUES(?, ?, ?, ?, ?)
		`, o.ID, it.ID, it.Name, it.Price, it.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecordOutcomes stores the per-line stock pass results for an order.
func (r *OrderRepo) RecordOutcomes(orderID string, outcomes []domain.StockOutcome) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, oc := range outcomes {
		ok := 0
		if oc.OK {
			ok = 1
		}
		if _, err := tx.Exec(`
		  INSERT INTO stock_outcomes(order_id, product_id, category, requested, previous_stock, new_stock, attempts, ok, error)
		  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		  ON CONFLICT(order_id, product_id) DO UPDATE SET
		    new_stock = excluded.new_stock, attempts = excluded.attempts,
		    ok = excluded.ok, error = excluded.error
		`, orderID, oc.ProductID, oc.Category, oc.Requested, oc.PreviousStock, oc.NewStock, oc.Attempts, ok, oc.Error); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepo) UpdateStatus(id, status string) error {
	_, err := r.db.Exec(`UPDATE orders SET status = ? WHERE id = ?`, status, id)
	return err
}

func (r *OrderRepo) Get(orderID string) (domain.Order, []OrderItemRow, error) {
	var o domain.Order
	if err := r.db.Get(&o, `
		SELECT id, COALESCE(session_id,'') AS session_id, COALESCE(user_id,'') AS user_id,
		       COALESCE(payment_id,'') AS payment_id, total, status, created_at
		FROM orders WHERE id = ?
	`, orderID); err != nil {
		return domain.Order{}, nil, err
	}

	var items []OrderItemRow
	if err := r.db.Select(&items, `
		SELECT product_id, name, qty, price, (qty * price) AS subtotal
		FROM order_items
		WHERE order_id = ?
		ORDER BY name
	`, orderID); err != nil {
		return domain.Order{}, nil, err
	}

	return o, items, nil
}

// Outcomes returns the stock pass results recorded for an order.
func (r *OrderRepo) Outcomes(orderID string) ([]OutcomeRow, error) {
	var out []OutcomeRow
	err := r.db.Select(&out, `
		SELECT product_id, category, requested, previous_stock, new_stock, attempts, ok, COALESCE(error,'') AS error
		FROM stock_outcomes
		WHERE order_id = ?
		ORDER BY product_id
	`, orderID)
	return out, err
}

func (r *OrderRepo) ListLatest(limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.Order
	err := r.db.Select(&out, `
		SELECT id, COALESCE(session_id,'') AS session_id, COALESCE(user_id,'') AS user_id,
		       COALESCE(payment_id,'') AS payment_id, total, status, created_at
		FROM orders
		ORDER BY datetime(created_at) DESC
		LIMIT ?
	`, limit)
	return out, err
}

// ListByUser returns a user's orders, newest first.
func (r *OrderRepo) ListByUser(userID string) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.Select(&out, `
		SELECT id, COALESCE(session_id,'') AS session_id, COALESCE(user_id,'') AS user_id,
		       COALESCE(payment_id,'') AS payment_id, total, status, created_at
		FROM orders
		WHERE user_id = ?
		ORDER BY datetime(created_at) DESC
	`, userID)
	return out, err
}

// ListBySession returns orders placed under a session before any login.
func (r *OrderRepo) ListBySession(sid string) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.Select(&out, `
		SELECT id, COALESCE(session_id,'') AS session_id, COALESCE(user_id,'') AS user_id,
		       COALESCE(payment_id,'') AS payment_id, total, status, created_at
		FROM orders
		WHERE session_id = ?
		ORDER BY datetime(created_at) DESC
	`, sid)
	return out, err
}
