package domain

type User struct {
	ID    string `db:"id" json:"id"`
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name"`
	Hash  string `db:"password_hash" json:"-"`
	Role  string `db:"role" json:"role"`
}

const (
	OrderPlaced             = "PLACED"
	OrderPlacedPartialStock = "PLACED_PARTIAL_STOCK"
)

// Order is a placed order header row. Status is PLACED when every line
// cleared its stock pass and PLACED_PARTIAL_STOCK when at least one did not.
type Order struct {
	ID        string  `db:"id" json:"id"`
	SessionID string  `db:"session_id" json:"sessionId,omitempty"`
	UserID    string  `db:"user_id" json:"userId,omitempty"`
	PaymentID string  `db:"payment_id" json:"paymentId"`
	Total     float64 `db:"total" json:"total"`
	Status    string  `db:"status" json:"status"`
	CreatedAt string  `db:"created_at" json:"createdAt"`
}
