package transfer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-pos/meridian/internal/ledger"
)

// Request lifecycle statuses.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
)

// Request is a proposed stock movement between two stores. It holds no stock
// effect of its own: quantities only hit the ledger when the request is
// approved. Full and Qty describe what was asked for; the clearance the
// approver actually chose is recorded at decision time and may override the
// requested mode, so a full clearance is always sized at the approval
// instant.
type Request struct {
	ID          uuid.UUID            `json:"id"`
	SourceStore int64                `json:"source_store_id"`
	DestStore   int64                `json:"dest_store_id"`
	ItemID      int64                `json:"item_id"`
	Qty         float64              `json:"qty"`
	Full        bool                 `json:"full"`
	Conversions []ledger.Conversion  `json:"conversions,omitempty"`
	Note        string               `json:"note,omitempty"`
	Status      Status               `json:"status"`
	RequestedBy int64                `json:"requested_by"`
	DecidedBy   int64                `json:"decided_by,omitempty"`
	Clearance   ledger.ClearanceType `json:"clearance,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	OpID        int64                `json:"op_id,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	DecidedAt   *time.Time           `json:"decided_at,omitempty"`
}

var (
	// ErrNotFound indicates the request does not exist.
	ErrNotFound = errors.New("transfer: request not found")
	// ErrInvalidState rejects decisions on already-decided requests.
	ErrInvalidState = errors.New("transfer: request already decided")
	// ErrValidation flags malformed request payloads.
	ErrValidation = errors.New("transfer: validation failed")
)
