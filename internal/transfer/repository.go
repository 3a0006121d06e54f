package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian/internal/ledger"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, source_store_id, dest_store_id, item_id, qty, full_transfer, conversions,
	note, status, requested_by, decided_by, clearance, reason, op_id, created_at, decided_at`

func (r *Repository) Create(ctx context.Context, req Request) error {
	conversions, err := json.Marshal(req.Conversions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO transfer_requests
			(id, source_store_id, dest_store_id, item_id, qty, full_transfer, conversions, note, status, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.SourceStore, req.DestStore, req.ItemID, req.Qty, req.Full, conversions,
		req.Note, req.Status, req.RequestedBy, req.CreatedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM transfer_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM transfer_requests WHERE TRUE`
	args := make([]any, 0, 4)
	if filter.StoreID != 0 {
		args = append(args, filter.StoreID)
		query += ` AND (source_store_id = $1 OR dest_store_id = $1)`
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + itoa(len(args))
	}
	args = append(args, filter.Limit)
	query += ` ORDER BY created_at DESC LIMIT $` + itoa(len(args))
	args = append(args, filter.Offset)
	query += ` OFFSET $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

// ClaimPending conditions the update on the PENDING status so concurrent
// approvers race on a single row version; losers see zero rows affected.
func (r *Repository) ClaimPending(ctx context.Context, id uuid.UUID, status Status, actorID int64, clearance ledger.ClearanceType, reason string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transfer_requests
		SET status = $2, decided_by = $3, clearance = NULLIF($4, ''), reason = NULLIF($5, ''), decided_at = $6
		WHERE id = $1 AND status = 'PENDING'`,
		id, status, actorID, string(clearance), reason, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) RevertClaim(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transfer_requests
		SET status = 'PENDING', decided_by = NULL, clearance = NULL, reason = NULL, decided_at = NULL, op_id = NULL
		WHERE id = $1`, id)
	return err
}

func (r *Repository) LinkOperation(ctx context.Context, id uuid.UUID, opID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE transfer_requests SET op_id = $2 WHERE id = $1`, id, opID)
	return err
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var decidedBy, opID *int64
	var clearance, reason *string
	var conversions []byte
	err := row.Scan(&req.ID, &req.SourceStore, &req.DestStore, &req.ItemID, &req.Qty, &req.Full, &conversions,
		&req.Note, &req.Status, &req.RequestedBy, &decidedBy, &clearance, &reason, &opID, &req.CreatedAt, &req.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	if len(conversions) > 0 {
		if err := json.Unmarshal(conversions, &req.Conversions); err != nil {
			return Request{}, err
		}
	}
	if decidedBy != nil {
		req.DecidedBy = *decidedBy
	}
	if clearance != nil {
		req.Clearance = ledger.ClearanceType(*clearance)
	}
	if reason != nil {
		req.Reason = *reason
	}
	if opID != nil {
		req.OpID = *opID
	}
	return req, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
