package ledger

import (
	"errors"
	"time"
)

// ClearanceType selects the deduction formula for conversions and transfers.
type ClearanceType string

const (
	// ClearanceFull consumes the entire current stock.
	ClearanceFull ClearanceType = "FULL"
	// ClearancePartial consumes only the declared quantities.
	ClearancePartial ClearanceType = "PARTIAL"
)

// Conversion redirects quantity removed from the source item into another
// item's stock instead of treating it as wasted.
type Conversion struct {
	DestItemID int64   `json:"dest_item_id"`
	Qty        float64 `json:"qty"`
}

// StockOperation is the append-only header of a committed operation.
// It is never updated in place; reversal only flips the Active flag.
type StockOperation struct {
	ID          int64         `json:"id"`
	Code        string        `json:"code"`
	Kind        OpKind        `json:"kind"`
	StoreID     int64         `json:"store_id"`
	DestStoreID int64         `json:"dest_store_id,omitempty"`
	ItemID      int64         `json:"item_id"`
	RefOpID     int64         `json:"ref_op_id,omitempty"`
	Clearance   ClearanceType `json:"clearance,omitempty"`
	MainQty     float64       `json:"main_qty"`
	SellQty     float64       `json:"sell_qty"`
	ReturnQty   float64       `json:"return_qty"`
	SalePrice   float64       `json:"sale_price"`
	BillRef     string        `json:"bill_ref,omitempty"`
	LorryNo     string        `json:"lorry_no,omitempty"`
	Customer    string        `json:"customer,omitempty"`
	TripID      int64         `json:"trip_id,omitempty"`
	Wastage     float64       `json:"wastage"`
	HasWastage  bool          `json:"has_wastage"`
	Active      bool          `json:"active"`
	CreatedBy   int64         `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	ReversedBy  int64         `json:"reversed_by,omitempty"`
	ReversedAt  time.Time     `json:"reversed_at,omitzero"`
}

// OperationLine records the applied delta for one (store, item) pair.
// MainQty and ConvertedQty are kept apart so wastage can be reconstructed
// later without consulting live stock, and PrevStock pins the exact value
// the reversal must restore.
type OperationLine struct {
	ID           int64   `json:"id"`
	OperationID  int64   `json:"operation_id"`
	StoreID      int64   `json:"store_id"`
	ItemID       int64   `json:"item_id"`
	Delta        float64 `json:"delta"`
	MainQty      float64 `json:"main_qty"`
	ConvertedQty float64 `json:"converted_qty"`
	PrevStock    float64 `json:"prev_stock"`
}

// ConversionEntry is one persisted fan-out edge of an operation.
type ConversionEntry struct {
	ID           int64   `json:"id"`
	OperationID  int64   `json:"operation_id"`
	SourceItemID int64   `json:"source_item_id"`
	DestItemID   int64   `json:"dest_item_id"`
	DestStoreID  int64   `json:"dest_store_id"`
	Qty          float64 `json:"qty"`
}

// Store carries the identifiers the code generator needs.
type Store struct {
	ID       int64
	Code     string
	Name     string
	Terminal string
}

// AppliedDelta reports one stock mutation performed by commit or reversal.
type AppliedDelta struct {
	StoreID  int64   `json:"store_id"`
	ItemID   int64   `json:"item_id"`
	Delta    float64 `json:"delta"`
	NewStock float64 `json:"new_stock"`
}

// Sentinel errors forming the engine's failure taxonomy.
var (
	// ErrValidation marks input the validator rejected; callers fix and retry.
	ErrValidation = errors.New("ledger: validation failed")
	// ErrConflict marks a concurrent commit against the same stock rows.
	ErrConflict = errors.New("ledger: concurrent stock mutation")
	// ErrReferenceNotFound marks a return pointing at a missing or reversed operation.
	ErrReferenceNotFound = errors.New("ledger: referenced operation not found")
	// ErrAlreadyReversed guards against double reversal.
	ErrAlreadyReversed = errors.New("ledger: operation already reversed")
	// ErrNotFound marks an unknown operation id.
	ErrNotFound = errors.New("ledger: operation not found")
	// ErrUnknownKind marks an operation kind outside the catalog.
	ErrUnknownKind = errors.New("ledger: unknown operation kind")
)

const qtyEpsilon = 1e-9

func totalConverted(conversions []Conversion) float64 {
	var total float64
	for _, c := range conversions {
		total += c.Qty
	}
	return total
}
