package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	stores map[int64]Store
	items  map[int64]Item
	stock  map[[2]int64]float64
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stores: make(map[int64]Store),
		items:  make(map[int64]Item),
		stock:  make(map[[2]int64]float64),
	}
}

func (r *memoryRepo) ListStores(ctx context.Context, includeInactive bool) ([]Store, error) {
	var out []Store
	for _, s := range r.stores {
		if !includeInactive && !s.Active {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryRepo) GetStore(ctx context.Context, id int64) (Store, error) {
	s, ok := r.stores[id]
	if !ok {
		return Store{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) CreateStore(ctx context.Context, store Store) (Store, error) {
	for _, s := range r.stores {
		if s.Code == store.Code {
			return Store{}, ErrDuplicate
		}
	}
	r.nextID++
	store.ID = r.nextID
	r.stores[store.ID] = store
	return store, nil
}

func (r *memoryRepo) UpdateStore(ctx context.Context, store Store) error {
	if _, ok := r.stores[store.ID]; !ok {
		return ErrNotFound
	}
	r.stores[store.ID] = store
	return nil
}

func (r *memoryRepo) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	var out []Item
	for _, it := range r.items {
		if filter.Search != "" && !strings.Contains(it.Name, filter.Search) {
			continue
		}
		out = append(out, it)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	it, ok := r.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (r *memoryRepo) CreateItem(ctx context.Context, item Item) (Item, error) {
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) UpdateItem(ctx context.Context, item Item) error {
	if _, ok := r.items[item.ID]; !ok {
		return ErrNotFound
	}
	r.items[item.ID] = item
	return nil
}

func (r *memoryRepo) GetStock(ctx context.Context, storeID, itemID int64) (float64, error) {
	return r.stock[[2]int64{storeID, itemID}], nil
}

func (r *memoryRepo) ListStock(ctx context.Context, storeID int64) ([]StockLevel, error) {
	var out []StockLevel
	for k, qty := range r.stock {
		if k[0] != storeID {
			continue
		}
		out = append(out, StockLevel{StoreID: k[0], ItemID: k[1], Qty: qty})
	}
	return out, nil
}

func TestCreateStoreValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateStore(ctx, Store{Name: "Kandy"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateStore(ctx, Store{Code: "KDY", Name: "   "})
	require.ErrorIs(t, err, ErrValidation)

	created, err := svc.CreateStore(ctx, Store{Code: "KDY", Name: "Kandy", Terminal: "T1"})
	require.NoError(t, err)
	require.True(t, created.Active)
	require.NotZero(t, created.ID)

	_, err = svc.CreateStore(ctx, Store{Code: "KDY", Name: "Duplicate"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, Item{Name: "Rice", Unit: "kg"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateItem(ctx, Item{SKU: "RICE-5", Name: "Rice", Unit: ""})
	require.ErrorIs(t, err, ErrValidation)

	created, err := svc.CreateItem(ctx, Item{SKU: "RICE-5", Name: "Rice 5kg", Unit: "kg"})
	require.NoError(t, err)
	require.True(t, created.Active)
}

func TestGetStockDefaultsToZero(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[[2]int64{1, 10}] = 42.5
	svc := NewService(repo)
	ctx := context.Background()

	level, err := svc.GetStock(ctx, 1, 10)
	require.NoError(t, err)
	require.InDelta(t, 42.5, level.Qty, 1e-9)

	level, err = svc.GetStock(ctx, 1, 99)
	require.NoError(t, err)
	require.Zero(t, level.Qty)

	_, err = svc.GetStock(ctx, 0, 10)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateStoreUnknown(t *testing.T) {
	svc := NewService(newMemoryRepo())
	err := svc.UpdateStore(context.Background(), Store{ID: 9, Code: "X", Name: "X"})
	require.ErrorIs(t, err, ErrNotFound)
}
