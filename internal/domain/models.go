package domain

import "time"

// ListKind selects which persisted list a store operation targets.
type ListKind string

const (
	KindCart     ListKind = "cart"
	KindWishlist ListKind = "wishlist"
)

// LineItem is one product entry in a cart or wishlist.
// Quantity is always >= 1; removal deletes the entry instead of zeroing it.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity"`
}

// RemoteList is the per-user document shape persisted in the remote store.
type RemoteList struct {
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
	UserID    string     `json:"userId"`
	Version   int64      `json:"version"`
}

// SessionContext identifies the caller for a single manager call. An empty
// UserID means the session is anonymous and operations target local storage.
type SessionContext struct {
	SessionID string
	UserID    string
}

func (sc SessionContext) Authenticated() bool { return sc.UserID != "" }

// RefreshEvent is handed to the UI-refresh callback after each mutation.
// OpenPanel is set when a cart add should reveal the cart panel.
type RefreshEvent struct {
	List      ListKind
	OpenPanel bool
}

// CatalogItem is the stock-relevant slice of a catalog product.
type CatalogItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price,omitempty"`
	Image     string    `json:"image,omitempty"`
	Stock     int       `json:"stock"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PartitionDoc is a whole catalog partition as stored and rewritten by the
// gateway. Version guards the read-modify-write cycle.
type PartitionDoc struct {
	Category string        `json:"category"`
	Products []CatalogItem `json:"products"`
	Version  int64         `json:"version"`
}

// StockUpdateRequest is the update-stock wire shape. The full partition
// product list rides along with the single mutated product's before/after.
type StockUpdateRequest struct {
	Category        string        `json:"category"`
	Products        []CatalogItem `json:"products"`
	ProductID       string        `json:"productId"`
	PreviousStock   int           `json:"previousStock"`
	NewStock        int           `json:"newStock"`
	QuantityReduced int           `json:"quantityReduced"`
	Version         int64         `json:"version"`
}

// StockUpdateResponse reports the gateway's verdict on an update-stock call.
type StockUpdateResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OrderLine is a finalized (id, quantity) pair handed to the stock service
// after payment confirmation.
type OrderLine struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
}

// StockOutcome is the per-item result of an order's stock pass. One order
// yields one outcome per line; a failed line never aborts its siblings.
type StockOutcome struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name,omitempty"`
	Category      string `json:"category"`
	Requested     int    `json:"requested"`
	PreviousStock int    `json:"previousStock"`
	NewStock      int    `json:"newStock"`
	Attempts      int    `json:"attempts"`
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
}

// Alert types and priorities.
const (
	AlertOutOfStock = "out_of_stock"
	AlertLowStock   = "low_stock"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// AlertProduct is one affected product inside a stock alert.
type AlertProduct struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// StockAlert is one entry in the capped notification log.
type StockAlert struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Products  []AlertProduct `json:"products"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
	Priority  string         `json:"priority"`
}

// Availability is the read-only stock answer for a requested quantity.
type Availability struct {
	Available bool   `json:"available"`
	Status    string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Stock     int    `json:"stock"`
}
