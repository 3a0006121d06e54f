package history

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian/internal/ledger"
)

type memoryRepo struct {
	rows  []row
	calls int
}

func (r *memoryRepo) List(ctx context.Context, filter Filter) ([]row, int, error) {
	r.calls++
	var out []row
	for _, e := range r.rows {
		if filter.StoreID != 0 && e.StoreID != filter.StoreID {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func sampleRow(kind ledger.OpKind, storeID int64) row {
	return row{Entry: Entry{
		OpID: 1, Code: "OP-KDY-20260830-CLR-T1-0042", Kind: kind, StoreID: storeID,
		ItemID: 10, MainQty: 90, Converted: 0, PrevStock: 100, CreatedBy: 5,
		CreatedAt: time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC),
	}}
}

func TestListReconstructsWastage(t *testing.T) {
	r := sampleRow(ledger.KindFullClear, 1)
	r.HasWastage = true
	repo := &memoryRepo{rows: []row{r}}
	svc := NewService(repo, nil, time.Minute, nil)

	page, err := svc.List(context.Background(), Filter{StoreID: 1})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.NotNil(t, page.Entries[0].Wastage)
	require.InDelta(t, -10, *page.Entries[0].Wastage, 1e-9) // 90 + 0 - 100
}

func TestListWastageUsesSellQtyForSaleKinds(t *testing.T) {
	r := sampleRow(ledger.KindFullClearSale, 1)
	r.HasWastage = true
	r.SellQty = 70
	r.Converted = 20
	repo := &memoryRepo{rows: []row{r}}
	svc := NewService(repo, nil, time.Minute, nil)

	page, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.InDelta(t, -10, *page.Entries[0].Wastage, 1e-9) // 70 + 20 - 100
}

func TestListOmitsWastageForNonWastageKinds(t *testing.T) {
	repo := &memoryRepo{rows: []row{sampleRow(ledger.KindPartialClear, 1)}}
	svc := NewService(repo, nil, time.Minute, nil)

	page, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Nil(t, page.Entries[0].Wastage)
}

func TestListRejectsUnknownKind(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, time.Minute, nil)
	_, err := svc.List(context.Background(), Filter{Kind: "BOGUS"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestListCachesPages(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &memoryRepo{rows: []row{sampleRow(ledger.KindPartialClear, 1)}}
	svc := NewService(repo, client, time.Minute, nil)
	ctx := context.Background()

	first, err := svc.List(ctx, Filter{StoreID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	second, err := svc.List(ctx, Filter{StoreID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls, "second read must come from cache")
	require.Equal(t, first, second)

	// A different filter is a different cache entry.
	_, err = svc.List(ctx, Filter{StoreID: 2})
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)

	// Expired entries fall back to the repository.
	mr.FastForward(2 * time.Minute)
	_, err = svc.List(ctx, Filter{StoreID: 1})
	require.NoError(t, err)
	require.Equal(t, 3, repo.calls)
}

func TestListPaginationDefaults(t *testing.T) {
	repo := &memoryRepo{rows: []row{sampleRow(ledger.KindPartialClear, 1)}}
	svc := NewService(repo, nil, time.Minute, nil)

	page, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Pagination.Page)
	require.Equal(t, 20, page.Pagination.PerPage)
	require.Equal(t, 1, page.Pagination.Total)
}
