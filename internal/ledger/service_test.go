package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	stores map[int64]Store
	stock  map[stockKey]float64
	ops    map[int64]StockOperation
	lines  map[int64][]OperationLine
	convs  map[int64][]ConversionEntry
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stores: map[int64]Store{
			1: {ID: 1, Code: "KDY", Name: "Kandy", Terminal: "T1"},
			2: {ID: 2, Code: "CMB", Name: "Colombo", Terminal: "T2"},
		},
		stock: make(map[stockKey]float64),
		ops:   make(map[int64]StockOperation),
		lines: make(map[int64][]OperationLine),
		convs: make(map[int64][]ConversionEntry),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOperation(ctx context.Context, id int64) (StockOperation, error) {
	op, ok := r.ops[id]
	if !ok {
		return StockOperation{}, ErrNotFound
	}
	return op, nil
}

func (r *memoryRepo) GetOperationDetail(ctx context.Context, id int64) (StockOperation, []OperationLine, []ConversionEntry, error) {
	op, err := r.GetOperation(ctx, id)
	if err != nil {
		return StockOperation{}, nil, nil, err
	}
	return op, r.lines[id], r.convs[id], nil
}

func (t *memoryTx) GetStore(ctx context.Context, id int64) (Store, error) {
	store, ok := t.repo.stores[id]
	if !ok {
		return Store{}, ErrNotFound
	}
	return store, nil
}

func (t *memoryTx) GetOperation(ctx context.Context, id int64) (StockOperation, error) {
	return t.repo.GetOperation(ctx, id)
}

func (t *memoryTx) GetOperationForUpdate(ctx context.Context, id int64) (StockOperation, error) {
	return t.repo.GetOperation(ctx, id)
}

func (t *memoryTx) GetOperationLines(ctx context.Context, opID int64) ([]OperationLine, error) {
	return t.repo.lines[opID], nil
}

func (t *memoryTx) GetStockForUpdate(ctx context.Context, storeID, itemID int64) (float64, error) {
	return t.repo.stock[stockKey{storeID, itemID}], nil
}

func (t *memoryTx) SetStock(ctx context.Context, storeID, itemID int64, qty float64) error {
	t.repo.stock[stockKey{storeID, itemID}] = qty
	return nil
}

func (t *memoryTx) InsertOperation(ctx context.Context, op StockOperation) (int64, error) {
	t.repo.nextID++
	op.ID = t.repo.nextID
	t.repo.ops[op.ID] = op
	return op.ID, nil
}

func (t *memoryTx) InsertOperationLines(ctx context.Context, opID int64, lines []OperationLine) error {
	stored := make([]OperationLine, len(lines))
	copy(stored, lines)
	for i := range stored {
		stored[i].OperationID = opID
	}
	t.repo.lines[opID] = stored
	return nil
}

func (t *memoryTx) InsertConversionEntries(ctx context.Context, opID int64, entries []ConversionEntry) error {
	stored := make([]ConversionEntry, len(entries))
	copy(stored, entries)
	for i := range stored {
		stored[i].OperationID = opID
	}
	t.repo.convs[opID] = stored
	return nil
}

func (t *memoryTx) MarkReversed(ctx context.Context, opID, actorID int64, at time.Time) error {
	op, ok := t.repo.ops[opID]
	if !ok {
		return ErrNotFound
	}
	if !op.Active {
		return ErrAlreadyReversed
	}
	op.Active = false
	op.ReversedBy = actorID
	op.ReversedAt = at
	t.repo.ops[opID] = op
	return nil
}

type fakeTrips struct{ next int64 }

func (f *fakeTrips) NextTrip(ctx context.Context, storeCode string) (int64, error) {
	f.next++
	return f.next, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, &fakeTrips{}, NewCodeGenerator("OP"), nil, nil)
}

func TestSubmitFullClearSetsStockToSelfAddition(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 100
	svc := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Submit(ctx, SubmitInput{Kind: KindFullClear, StoreID: 1, ItemID: 10, MainQty: 90, ActorID: 5})
	require.NoError(t, err)
	require.NotZero(t, result.OpID)
	require.NotEmpty(t, result.OpCode)
	require.InDelta(t, 0, repo.stock[stockKey{1, 10}], 1e-9)
	require.NotNil(t, result.Wastage)
	require.InDelta(t, -10, *result.Wastage, 1e-9)
}

func TestSubmitFullClearNegativeStockDoesNotDouble(t *testing.T) {
	// A negative book value clears to exactly zero, not to 2x|stock|.
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = -12
	svc := newTestService(repo)

	result, err := svc.Submit(context.Background(), SubmitInput{Kind: KindFullClear, StoreID: 1, ItemID: 10, ActorID: 5})
	require.NoError(t, err)
	require.InDelta(t, 0, repo.stock[stockKey{1, 10}], 1e-9)
	require.NotNil(t, result.Wastage)
	require.InDelta(t, 12, *result.Wastage, 1e-9)
}

func TestSubmitPartialClearWithConversion(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 50
	svc := newTestService(repo)

	result, err := svc.Submit(context.Background(), SubmitInput{
		Kind: KindPartialClear, StoreID: 1, ItemID: 10, MainQty: 20, ActorID: 5,
		ConversionEnabled: true, Conversions: []Conversion{{DestItemID: 11, Qty: 10}},
	})
	require.NoError(t, err)
	require.InDelta(t, 20, repo.stock[stockKey{1, 10}], 1e-9)
	require.InDelta(t, 10, repo.stock[stockKey{1, 11}], 1e-9)
	require.Len(t, result.Deltas, 2)
	require.Nil(t, result.Wastage)
}

func TestSubmitTransferFullTouchesBothLedgers(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 40
	svc := newTestService(repo)

	result, err := svc.Submit(context.Background(), SubmitInput{
		Kind: KindTransferFull, StoreID: 1, DestStoreID: 2, ItemID: 10, ActorID: 5,
		ConversionEnabled: true, Conversions: []Conversion{{DestItemID: 10, Qty: 42}},
	})
	require.NoError(t, err)
	require.InDelta(t, 0, repo.stock[stockKey{1, 10}], 1e-9)
	require.InDelta(t, 42, repo.stock[stockKey{2, 10}], 1e-9)
	require.NotNil(t, result.Wastage)
	require.InDelta(t, 2, *result.Wastage, 1e-9)
}

func TestSubmitTransferFullDisabledConversionsDoNotInflateWastage(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 40
	svc := newTestService(repo)

	result, err := svc.Submit(context.Background(), SubmitInput{
		Kind: KindTransferFull, StoreID: 1, DestStoreID: 2, ItemID: 10, MainQty: 40, ActorID: 5,
		Conversions: []Conversion{{DestItemID: 11, Qty: 42}},
	})
	require.NoError(t, err)
	require.InDelta(t, 0, repo.stock[stockKey{1, 10}], 1e-9)
	require.InDelta(t, 40, repo.stock[stockKey{2, 10}], 1e-9)
	// The disabled conversion line never lands, so it must not count as
	// output either.
	require.Zero(t, repo.stock[stockKey{2, 11}])
	require.NotNil(t, result.Wastage)
	require.InDelta(t, 0, *result.Wastage, 1e-9)
}

func TestSubmitStockReturnDirect(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 3
	svc := newTestService(repo)

	_, err := svc.Submit(context.Background(), SubmitInput{
		Kind: KindStockReturn, StoreID: 1, ItemID: 10, ReturnQty: 15, DirectReturn: true, ActorID: 5,
	})
	require.NoError(t, err)
	require.InDelta(t, 18, repo.stock[stockKey{1, 10}], 1e-9)
}

func TestSubmitStockReturnReferenceChecks(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitInput{Kind: KindStockReturn, StoreID: 1, ItemID: 10, ReturnQty: 1, RefOpID: 99, ActorID: 5})
	require.ErrorIs(t, err, ErrReferenceNotFound)

	// A reversed operation cannot be referenced either.
	sale, err := svc.Submit(ctx, SubmitInput{Kind: KindPartialClearSale, StoreID: 1, ItemID: 10, SellQty: 2, ActorID: 5})
	require.NoError(t, err)
	_, err = svc.Reverse(ctx, sale.OpID, 5)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, SubmitInput{Kind: KindStockReturn, StoreID: 1, ItemID: 10, ReturnQty: 1, RefOpID: sale.OpID, ActorID: 5})
	require.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestReverseIsLeftInverseOfCommit(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 30
	repo.stock[stockKey{1, 11}] = 4
	svc := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Submit(ctx, SubmitInput{
		Kind: KindConversionPartial, StoreID: 1, ItemID: 10, ActorID: 5,
		Conversions: []Conversion{{DestItemID: 11, Qty: 5}},
	})
	require.NoError(t, err)
	require.InDelta(t, 25, repo.stock[stockKey{1, 10}], 1e-9)
	require.InDelta(t, 9, repo.stock[stockKey{1, 11}], 1e-9)

	// Unrelated traffic on other rows must not disturb the inverse.
	_, err = svc.Submit(ctx, SubmitInput{Kind: KindStockReceipt, StoreID: 2, ItemID: 20, MainQty: 7, ActorID: 5})
	require.NoError(t, err)

	rev, err := svc.Reverse(ctx, result.OpID, 5)
	require.NoError(t, err)
	require.Len(t, rev.Deltas, 2)
	require.InDelta(t, 30, repo.stock[stockKey{1, 10}], 1e-9)
	require.InDelta(t, 4, repo.stock[stockKey{1, 11}], 1e-9)

	op, err := svc.GetOperation(ctx, result.OpID)
	require.NoError(t, err)
	require.False(t, op.Active)
	require.Equal(t, int64(5), op.ReversedBy)
}

func TestReverseTransferRestoresBothStores(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 40
	repo.stock[stockKey{2, 10}] = 8
	svc := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Submit(ctx, SubmitInput{
		Kind: KindTransferPartial, StoreID: 1, DestStoreID: 2, ItemID: 10, MainQty: 15, ActorID: 5,
	})
	require.NoError(t, err)
	require.InDelta(t, 25, repo.stock[stockKey{1, 10}], 1e-9)
	require.InDelta(t, 23, repo.stock[stockKey{2, 10}], 1e-9)

	_, err = svc.Reverse(ctx, result.OpID, 5)
	require.NoError(t, err)
	require.InDelta(t, 40, repo.stock[stockKey{1, 10}], 1e-9)
	require.InDelta(t, 8, repo.stock[stockKey{2, 10}], 1e-9)
}

func TestReverseTwiceFailsCleanly(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 10
	svc := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Submit(ctx, SubmitInput{Kind: KindPartialClear, StoreID: 1, ItemID: 10, MainQty: 4, ActorID: 5})
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, result.OpID, 5)
	require.NoError(t, err)
	before := repo.stock[stockKey{1, 10}]

	_, err = svc.Reverse(ctx, result.OpID, 5)
	require.ErrorIs(t, err, ErrAlreadyReversed)
	require.InDelta(t, before, repo.stock[stockKey{1, 10}], 1e-9)
}

func TestReverseUnknownOperation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Reverse(context.Background(), 12345, 5)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitValidatesBeforeTouchingStorage(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Submit(context.Background(), SubmitInput{Kind: KindPartialClear, StoreID: 1, ItemID: 10, ActorID: 5})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, repo.ops)
}

func TestSubmitUnknownStore(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Submit(context.Background(), SubmitInput{Kind: KindFullClear, StoreID: 77, ItemID: 10, ActorID: 5})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSubmitWithTripAssignsTripID(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 5
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Submit(ctx, SubmitInput{Kind: KindFullClear, StoreID: 1, ItemID: 10, ActorID: 5, WithTrip: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.TripID)

	// Trip ids only move when requested.
	second, err := svc.Submit(ctx, SubmitInput{Kind: KindStockReceipt, StoreID: 1, ItemID: 10, MainQty: 2, ActorID: 5})
	require.NoError(t, err)
	require.Zero(t, second.TripID)
}

func TestSubmitPersistsMainAndConvertedSeparately(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[stockKey{1, 10}] = 100
	svc := newTestService(repo)

	result, err := svc.Submit(context.Background(), SubmitInput{
		Kind: KindFullClearSale, StoreID: 1, ItemID: 10, SellQty: 70, ActorID: 5,
		Conversions: []Conversion{{DestItemID: 11, Qty: 20}},
		SalePrice:   120.50, BillRef: "INV-991",
	})
	require.NoError(t, err)

	_, lines, convs, err := repo.GetOperationDetail(context.Background(), result.OpID)
	require.NoError(t, err)
	require.Len(t, convs, 1)

	var src OperationLine
	for _, l := range lines {
		if l.ItemID == 10 {
			src = l
		}
	}
	require.InDelta(t, 70, src.MainQty, 1e-9)
	require.InDelta(t, 20, src.ConvertedQty, 1e-9)
	require.InDelta(t, 100, src.PrevStock, 1e-9)
	require.InDelta(t, -100, src.Delta, 1e-9)

	require.NotNil(t, result.Wastage)
	require.InDelta(t, -10, *result.Wastage, 1e-9) // 70 + 20 - 100
}
