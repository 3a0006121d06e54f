package history

import (
	"errors"
	"time"

	"github.com/meridian-pos/meridian/internal/ledger"
)

// Entry is one committed operation as the back-office history screens show
// it. Wastage is reconstructed from the persisted line quantities, never from
// live stock, so reversals and later traffic cannot shift old rows.
type Entry struct {
	OpID        int64         `json:"op_id"`
	Code        string        `json:"code"`
	Kind        ledger.OpKind `json:"kind"`
	StoreID     int64         `json:"store_id"`
	DestStoreID int64         `json:"dest_store_id,omitempty"`
	ItemID      int64         `json:"item_id"`
	MainQty     float64       `json:"main_qty"`
	SellQty     float64       `json:"sell_qty,omitempty"`
	ReturnQty   float64       `json:"return_qty,omitempty"`
	Converted   float64       `json:"converted_qty"`
	PrevStock   float64       `json:"prev_stock"`
	Wastage     *float64      `json:"wastage,omitempty"`
	SalePrice   float64       `json:"sale_price,omitempty"`
	BillRef     string        `json:"bill_ref,omitempty"`
	TripID      int64         `json:"trip_id,omitempty"`
	CreatedBy   int64         `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Filter narrows history listings.
type Filter struct {
	StoreID int64
	Kind    ledger.OpKind
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

// ErrValidation flags malformed filters.
var ErrValidation = errors.New("history: validation failed")
