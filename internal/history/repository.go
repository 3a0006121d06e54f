package history

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads committed operations for history listings. Only active
// operations are listed; reversed ones disappear from history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type row struct {
	Entry
	HasWastage bool
}

// List selects the page and the total count. Each operation is joined with
// its source line so prev stock and converted totals come from what the
// commit persisted.
func (r *Repository) List(ctx context.Context, filter Filter) ([]row, int, error) {
	where := ` FROM stock_operations op
		JOIN stock_operation_lines ln
			ON ln.operation_id = op.id AND ln.store_id = op.store_id AND ln.item_id = op.item_id
		WHERE op.active`
	args := []any{}
	add := func(cond string, val any) {
		args = append(args, val)
		where += ` AND ` + cond + `$` + strconv.Itoa(len(args))
	}
	if filter.StoreID != 0 {
		add(`op.store_id = `, filter.StoreID)
	}
	if filter.Kind != "" {
		add(`op.kind = `, string(filter.Kind))
	}
	if !filter.From.IsZero() {
		add(`op.created_at >= `, filter.From)
	}
	if !filter.To.IsZero() {
		add(`op.created_at < `, filter.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT op.id, op.code, op.kind, op.store_id, COALESCE(op.dest_store_id, 0), op.item_id,
		op.main_qty, op.sell_qty, op.return_qty, ln.converted_qty, ln.prev_stock, op.has_wastage,
		op.sale_price, COALESCE(op.bill_ref, ''), COALESCE(op.trip_id, 0), op.created_by, op.created_at` + where
	args = append(args, filter.PerPage)
	query += ` ORDER BY op.created_at DESC, op.id DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, (filter.Page-1)*filter.PerPage)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var e row
		var createdAt time.Time
		if err := rows.Scan(&e.OpID, &e.Code, &e.Kind, &e.StoreID, &e.DestStoreID, &e.ItemID,
			&e.MainQty, &e.SellQty, &e.ReturnQty, &e.Converted, &e.PrevStock, &e.HasWastage,
			&e.SalePrice, &e.BillRef, &e.TripID, &e.CreatedBy, &createdAt); err != nil {
			return nil, 0, err
		}
		e.CreatedAt = createdAt
		out = append(out, e)
	}
	return out, total, rows.Err()
}
