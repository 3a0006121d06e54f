package catalog

import (
	"errors"
	"time"
)

// Store is a selling location with its own stock ledger.
type Store struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Terminal  string    `json:"terminal"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is a stock-keeping unit tracked per store.
type Item struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Category  string    `json:"category,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockLevel is the current book quantity of one item in one store.
type StockLevel struct {
	StoreID int64   `json:"store_id"`
	ItemID  int64   `json:"item_id"`
	Qty     float64 `json:"qty"`
}

var (
	// ErrNotFound indicates a missing store or item.
	ErrNotFound = errors.New("catalog: not found")
	// ErrValidation flags malformed payloads.
	ErrValidation = errors.New("catalog: validation failed")
	// ErrDuplicate flags code or SKU collisions.
	ErrDuplicate = errors.New("catalog: duplicate code")
)
