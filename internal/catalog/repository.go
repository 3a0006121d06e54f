package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListStores(ctx context.Context, includeInactive bool) ([]Store, error) {
	query := `SELECT id, code, name, terminal, active, created_at, updated_at FROM stores`
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []Store
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Terminal, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

func (r *Repository) GetStore(ctx context.Context, id int64) (Store, error) {
	var s Store
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, terminal, active, created_at, updated_at FROM stores WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.Terminal, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, ErrNotFound
		}
		return Store{}, err
	}
	return s, nil
}

func (r *Repository) CreateStore(ctx context.Context, store Store) (Store, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stores (code, name, terminal, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id`,
		store.Code, store.Name, store.Terminal, store.Active, now).Scan(&store.ID)
	if err != nil {
		return Store{}, translateDuplicate(err)
	}
	store.CreatedAt = now
	store.UpdatedAt = now
	return store, nil
}

func (r *Repository) UpdateStore(ctx context.Context, store Store) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE stores SET code = $2, name = $3, terminal = $4, active = $5, updated_at = $6
		WHERE id = $1`,
		store.ID, store.Code, store.Name, store.Terminal, store.Active, time.Now().UTC())
	if err != nil {
		return translateDuplicate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	query := `SELECT id, sku, name, unit, COALESCE(category, ''), active, created_at, updated_at FROM items WHERE active`
	countQuery := `SELECT COUNT(*) FROM items WHERE active`
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		cond := ` AND (name ILIKE $1 OR sku ILIKE $1)`
		query += cond
		countQuery += cond
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit)
	query += ` ORDER BY name LIMIT $` + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SKU, &it.Name, &it.Unit, &it.Category, &it.Active, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx,
		`SELECT id, sku, name, unit, COALESCE(category, ''), active, created_at, updated_at FROM items WHERE id = $1`, id).
		Scan(&it.ID, &it.SKU, &it.Name, &it.Unit, &it.Category, &it.Active, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func (r *Repository) CreateItem(ctx context.Context, item Item) (Item, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO items (sku, name, unit, category, active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $6)
		RETURNING id`,
		item.SKU, item.Name, item.Unit, item.Category, item.Active, now).Scan(&item.ID)
	if err != nil {
		return Item{}, translateDuplicate(err)
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

func (r *Repository) UpdateItem(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE items SET sku = $2, name = $3, unit = $4, category = NULLIF($5, ''), active = $6, updated_at = $7
		WHERE id = $1`,
		item.ID, item.SKU, item.Name, item.Unit, item.Category, item.Active, time.Now().UTC())
	if err != nil {
		return translateDuplicate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStock treats a missing row as zero stock, the same convention the ledger
// uses when it locks pairs.
func (r *Repository) GetStock(ctx context.Context, storeID, itemID int64) (float64, error) {
	var qty float64
	err := r.pool.QueryRow(ctx,
		`SELECT qty FROM store_stock WHERE store_id = $1 AND item_id = $2`, storeID, itemID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

func (r *Repository) ListStock(ctx context.Context, storeID int64) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT store_id, item_id, qty FROM store_stock WHERE store_id = $1 ORDER BY item_id`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var lvl StockLevel
		if err := rows.Scan(&lvl.StoreID, &lvl.ItemID, &lvl.Qty); err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

func translateDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
