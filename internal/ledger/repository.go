package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a serializable transaction. Commit and
// reversal both run through here; serialization failures surface to the
// service, which retries the whole unit.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const operationColumns = `id, code, kind, store_id, dest_store_id, item_id, ref_op_id, clearance,
main_qty, sell_qty, return_qty, sale_price, bill_ref, lorry_no, customer, trip_id,
wastage, has_wastage, active, created_by, created_at, reversed_by, reversed_at`

func scanOperation(row pgx.Row) (StockOperation, error) {
	var op StockOperation
	var destStore, refOp, tripID, reversedBy *int64
	var clearance *string
	var reversedAt *time.Time
	err := row.Scan(&op.ID, &op.Code, &op.Kind, &op.StoreID, &destStore, &op.ItemID, &refOp, &clearance,
		&op.MainQty, &op.SellQty, &op.ReturnQty, &op.SalePrice, &op.BillRef, &op.LorryNo, &op.Customer, &tripID,
		&op.Wastage, &op.HasWastage, &op.Active, &op.CreatedBy, &op.CreatedAt, &reversedBy, &reversedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockOperation{}, ErrNotFound
		}
		return StockOperation{}, err
	}
	if destStore != nil {
		op.DestStoreID = *destStore
	}
	if refOp != nil {
		op.RefOpID = *refOp
	}
	if clearance != nil {
		op.Clearance = ClearanceType(*clearance)
	}
	if tripID != nil {
		op.TripID = *tripID
	}
	if reversedBy != nil {
		op.ReversedBy = *reversedBy
	}
	if reversedAt != nil {
		op.ReversedAt = *reversedAt
	}
	return op, nil
}

// GetOperation loads one operation header outside a transaction.
func (r *Repository) GetOperation(ctx context.Context, id int64) (StockOperation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+operationColumns+` FROM stock_operations WHERE id=$1`, id)
	return scanOperation(row)
}

// GetOperationDetail loads an operation with its lines and conversion edges.
func (r *Repository) GetOperationDetail(ctx context.Context, id int64) (StockOperation, []OperationLine, []ConversionEntry, error) {
	op, err := r.GetOperation(ctx, id)
	if err != nil {
		return StockOperation{}, nil, nil, err
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return StockOperation{}, nil, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, operation_id, source_item_id, dest_item_id, dest_store_id, qty
FROM stock_conversions WHERE operation_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return StockOperation{}, nil, nil, err
	}
	defer rows.Close()
	var entries []ConversionEntry
	for rows.Next() {
		var e ConversionEntry
		if err := rows.Scan(&e.ID, &e.OperationID, &e.SourceItemID, &e.DestItemID, &e.DestStoreID, &e.Qty); err != nil {
			return StockOperation{}, nil, nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return StockOperation{}, nil, nil, err
	}
	return op, lines, entries, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, opID int64) ([]OperationLine, error) {
	rows, err := q.Query(ctx, `SELECT id, operation_id, store_id, item_id, delta, main_qty, converted_qty, prev_stock
FROM stock_operation_lines WHERE operation_id=$1 ORDER BY id ASC`, opID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []OperationLine
	for rows.Next() {
		var l OperationLine
		if err := rows.Scan(&l.ID, &l.OperationID, &l.StoreID, &l.ItemID, &l.Delta, &l.MainQty, &l.ConvertedQty, &l.PrevStock); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *txRepository) GetStore(ctx context.Context, id int64) (Store, error) {
	var store Store
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, terminal FROM stores WHERE id=$1`, id).
		Scan(&store.ID, &store.Code, &store.Name, &store.Terminal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, ErrNotFound
		}
		return Store{}, err
	}
	return store, nil
}

func (r *txRepository) GetOperation(ctx context.Context, id int64) (StockOperation, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+operationColumns+` FROM stock_operations WHERE id=$1`, id)
	return scanOperation(row)
}

func (r *txRepository) GetOperationForUpdate(ctx context.Context, id int64) (StockOperation, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+operationColumns+` FROM stock_operations WHERE id=$1 FOR UPDATE`, id)
	return scanOperation(row)
}

func (r *txRepository) GetOperationLines(ctx context.Context, opID int64) ([]OperationLine, error) {
	return queryLines(ctx, r.tx, opID)
}

// GetStockForUpdate locks and reads one (store, item) stock row. A missing
// row reads as zero; SetStock creates it on write.
func (r *txRepository) GetStockForUpdate(ctx context.Context, storeID, itemID int64) (float64, error) {
	var qty float64
	err := r.tx.QueryRow(ctx, `SELECT qty FROM store_stock WHERE store_id=$1 AND item_id=$2 FOR UPDATE`, storeID, itemID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

func (r *txRepository) SetStock(ctx context.Context, storeID, itemID int64, qty float64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO store_stock (store_id, item_id, qty, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (store_id, item_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`, storeID, itemID, qty)
	return err
}

func (r *txRepository) InsertOperation(ctx context.Context, op StockOperation) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_operations
(code, kind, store_id, dest_store_id, item_id, ref_op_id, clearance, main_qty, sell_qty, return_qty,
 sale_price, bill_ref, lorry_no, customer, trip_id, wastage, has_wastage, active, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
RETURNING id`,
		op.Code, string(op.Kind), op.StoreID, nullInt(op.DestStoreID), op.ItemID, nullInt(op.RefOpID),
		nullString(string(op.Clearance)), op.MainQty, op.SellQty, op.ReturnQty,
		op.SalePrice, op.BillRef, op.LorryNo, op.Customer, nullInt(op.TripID),
		op.Wastage, op.HasWastage, op.Active, op.CreatedBy, op.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertOperationLines(ctx context.Context, opID int64, lines []OperationLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_operation_lines
(operation_id, store_id, item_id, delta, main_qty, converted_qty, prev_stock)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, opID, line.StoreID, line.ItemID, line.Delta, line.MainQty, line.ConvertedQty, line.PrevStock); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) InsertConversionEntries(ctx context.Context, opID int64, entries []ConversionEntry) error {
	for _, e := range entries {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_conversions
(operation_id, source_item_id, dest_item_id, dest_store_id, qty)
VALUES ($1,$2,$3,$4,$5)`, opID, e.SourceItemID, e.DestItemID, e.DestStoreID, e.Qty); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, opID, actorID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_operations SET active=FALSE, reversed_by=$2, reversed_at=$3
WHERE id=$1 AND active=TRUE`, opID, actorID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
