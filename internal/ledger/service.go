package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meridian-pos/meridian/internal/shared"
)

// RepositoryPort abstracts storage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOperation(ctx context.Context, id int64) (StockOperation, error)
	GetOperationDetail(ctx context.Context, id int64) (StockOperation, []OperationLine, []ConversionEntry, error)
}

// TxRepository exposes the operations available inside one commit/reversal
// transaction.
type TxRepository interface {
	GetStore(ctx context.Context, id int64) (Store, error)
	GetOperation(ctx context.Context, id int64) (StockOperation, error)
	GetOperationForUpdate(ctx context.Context, id int64) (StockOperation, error)
	GetOperationLines(ctx context.Context, opID int64) ([]OperationLine, error)
	GetStockForUpdate(ctx context.Context, storeID, itemID int64) (float64, error)
	SetStock(ctx context.Context, storeID, itemID int64, qty float64) error
	InsertOperation(ctx context.Context, op StockOperation) (int64, error)
	InsertOperationLines(ctx context.Context, opID int64, lines []OperationLine) error
	InsertConversionEntries(ctx context.Context, opID int64, entries []ConversionEntry) error
	MarkReversed(ctx context.Context, opID, actorID int64, at time.Time) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts ledger outcomes.
type MetricsPort interface {
	Commit(kind string)
	Reversal()
	Conflict()
}

// Service is the ledger mutator and reversal engine.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	idem    *shared.IdempotencyStore
	trips   TripSource
	codes   *CodeGenerator
	metrics MetricsPort
	logger  *slog.Logger
}

// NewService builds Service. audit, idem, trips and metrics may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, trips TripSource, codes *CodeGenerator, metrics MetricsPort, logger *slog.Logger) *Service {
	if codes == nil {
		codes = NewCodeGenerator("OP")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idem: idem, trips: trips, codes: codes, metrics: metrics, logger: logger}
}

// SubmitResult reports a committed operation.
type SubmitResult struct {
	OpID    int64          `json:"op_id"`
	OpCode  string         `json:"op_code"`
	TripID  int64          `json:"trip_id,omitempty"`
	Wastage *float64       `json:"wastage,omitempty"`
	Deltas  []AppliedDelta `json:"applied_deltas"`
}

// ReverseResult reports the inverse deltas a reversal applied.
type ReverseResult struct {
	OpID   int64          `json:"op_id"`
	Deltas []AppliedDelta `json:"applied_deltas"`
}

const commitAttempts = 3

// Submit validates and commits one operation as a single atomic unit: the
// header, its item lines, its conversion lines, and exactly one stock delta
// per implicated (item, store) pair.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	if err := Validate(in); err != nil {
		return SubmitResult{}, err
	}
	spec, _ := Spec(in.Kind)

	insertedKey := false
	if s.idem != nil && in.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, in.IdempotencyKey, "ledger"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return SubmitResult{}, fmt.Errorf("%w: duplicate submission", ErrConflict)
			}
			return SubmitResult{}, err
		}
		insertedKey = true
	}

	var result SubmitResult
	var err error
	for attempt := 0; attempt < commitAttempts; attempt++ {
		result, err = s.commitOnce(ctx, spec, in)
		if err == nil {
			break
		}
		if retryableCommitError(err) {
			continue
		}
		break
	}
	if err != nil {
		if insertedKey {
			_ = s.idem.Delete(ctx, in.IdempotencyKey)
		}
		if serializationFailure(err) {
			err = fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if errors.Is(err, ErrConflict) && s.metrics != nil {
			s.metrics.Conflict()
		}
		return SubmitResult{}, err
	}

	if s.metrics != nil {
		s.metrics.Commit(string(in.Kind))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  in.ActorID,
			Action:   fmt.Sprintf("ledger:commit:%s", in.Kind),
			Entity:   "stock_operation",
			EntityID: result.OpCode,
			Meta: map[string]any{
				"store_id": in.StoreID,
				"item_id":  in.ItemID,
				"op_id":    result.OpID,
			},
		})
	}
	return result, nil
}

func (s *Service) commitOnce(ctx context.Context, spec KindSpec, in SubmitInput) (SubmitResult, error) {
	var result SubmitResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		store, err := tx.GetStore(ctx, in.StoreID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return reason("store not found")
			}
			return err
		}
		if spec.DualStore {
			if _, err := tx.GetStore(ctx, in.DestStoreID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return reason("destination store not found")
				}
				return err
			}
		}
		if in.Kind == KindStockReturn && in.RefOpID != 0 {
			ref, err := tx.GetOperation(ctx, in.RefOpID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return ErrReferenceNotFound
				}
				return err
			}
			if !ref.Active {
				return ErrReferenceNotFound
			}
		}

		// Lock every affected pair in a stable order so two concurrent
		// commits against overlapping rows cannot deadlock.
		keys := affectedPairs(spec, in)
		current := make(map[stockKey]float64, len(keys))
		for _, k := range keys {
			qty, err := tx.GetStockForUpdate(ctx, k.StoreID, k.ItemID)
			if err != nil {
				return err
			}
			current[k] = qty
		}

		lines := computeLines(spec, in, current)

		op := StockOperation{
			Code:        s.codes.Next(store, spec),
			Kind:        in.Kind,
			StoreID:     in.StoreID,
			DestStoreID: in.DestStoreID,
			ItemID:      in.ItemID,
			RefOpID:     in.RefOpID,
			Clearance:   clearanceOf(spec),
			MainQty:     in.MainQty,
			SellQty:     in.SellQty,
			ReturnQty:   in.ReturnQty,
			SalePrice:   in.SalePrice,
			BillRef:     in.BillRef,
			LorryNo:     in.LorryNo,
			Customer:    in.Customer,
			Active:      true,
			CreatedBy:   in.ActorID,
			CreatedAt:   time.Now().UTC(),
		}
		if spec.ComputesWastage {
			pi := previewFromSubmit(in, current[sourceKey(in)])
			op.HasWastage = true
			op.Wastage = primaryOutput(spec, pi) + convertedTotal(spec, pi) - current[sourceKey(in)]
		}
		if in.WithTrip {
			if s.trips == nil {
				return reason("trip ids are not available")
			}
			tripID, err := s.trips.NextTrip(ctx, store.Code)
			if err != nil {
				return fmt.Errorf("ledger: next trip id: %w", err)
			}
			op.TripID = tripID
		}

		opID, err := tx.InsertOperation(ctx, op)
		if err != nil {
			return err
		}
		if err := tx.InsertOperationLines(ctx, opID, lines); err != nil {
			return err
		}
		if entries := conversionEntries(spec, in); len(entries) > 0 {
			if err := tx.InsertConversionEntries(ctx, opID, entries); err != nil {
				return err
			}
		}

		deltas := make([]AppliedDelta, 0, len(lines))
		for _, line := range lines {
			newQty := current[stockKey{line.StoreID, line.ItemID}] + line.Delta
			if err := tx.SetStock(ctx, line.StoreID, line.ItemID, newQty); err != nil {
				return err
			}
			deltas = append(deltas, AppliedDelta{StoreID: line.StoreID, ItemID: line.ItemID, Delta: line.Delta, NewStock: newQty})
		}

		result = SubmitResult{OpID: opID, OpCode: op.Code, TripID: op.TripID, Deltas: deltas}
		if op.HasWastage {
			w := op.Wastage
			result.Wastage = &w
		}
		return nil
	})
	return result, err
}

// Reverse applies the exact inverse of a committed operation's persisted
// deltas and marks it inactive. The original deltas are recomputed from the
// stored lines, never from live stock.
func (s *Service) Reverse(ctx context.Context, opID, actorID int64) (ReverseResult, error) {
	if opID == 0 {
		return ReverseResult{}, ErrNotFound
	}
	if actorID == 0 {
		return ReverseResult{}, reason("actor is required")
	}

	var result ReverseResult
	var err error
	for attempt := 0; attempt < commitAttempts; attempt++ {
		result, err = s.reverseOnce(ctx, opID, actorID)
		if err == nil || !serializationFailure(err) {
			break
		}
	}
	if err != nil {
		if serializationFailure(err) {
			err = fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if errors.Is(err, ErrConflict) && s.metrics != nil {
			s.metrics.Conflict()
		}
		return ReverseResult{}, err
	}

	if s.metrics != nil {
		s.metrics.Reversal()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "ledger:reverse",
			Entity:   "stock_operation",
			EntityID: fmt.Sprintf("%d", opID),
		})
	}
	return result, nil
}

func (s *Service) reverseOnce(ctx context.Context, opID, actorID int64) (ReverseResult, error) {
	var result ReverseResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		op, err := tx.GetOperationForUpdate(ctx, opID)
		if err != nil {
			return err
		}
		if !op.Active {
			return ErrAlreadyReversed
		}
		lines, err := tx.GetOperationLines(ctx, opID)
		if err != nil {
			return err
		}
		sort.Slice(lines, func(i, j int) bool {
			if lines[i].StoreID != lines[j].StoreID {
				return lines[i].StoreID < lines[j].StoreID
			}
			return lines[i].ItemID < lines[j].ItemID
		})

		deltas := make([]AppliedDelta, 0, len(lines))
		for _, line := range lines {
			cur, err := tx.GetStockForUpdate(ctx, line.StoreID, line.ItemID)
			if err != nil {
				return err
			}
			newQty := cur - line.Delta
			if err := tx.SetStock(ctx, line.StoreID, line.ItemID, newQty); err != nil {
				return err
			}
			deltas = append(deltas, AppliedDelta{StoreID: line.StoreID, ItemID: line.ItemID, Delta: -line.Delta, NewStock: newQty})
		}
		if err := tx.MarkReversed(ctx, opID, actorID, time.Now().UTC()); err != nil {
			return err
		}
		result = ReverseResult{OpID: opID, Deltas: deltas}
		return nil
	})
	return result, err
}

// GetOperation loads one operation header.
func (s *Service) GetOperation(ctx context.Context, id int64) (StockOperation, error) {
	return s.repo.GetOperation(ctx, id)
}

// GetOperationDetail loads an operation with its lines and conversions.
func (s *Service) GetOperationDetail(ctx context.Context, id int64) (StockOperation, []OperationLine, []ConversionEntry, error) {
	return s.repo.GetOperationDetail(ctx, id)
}

type stockKey struct {
	StoreID int64
	ItemID  int64
}

func sourceKey(in SubmitInput) stockKey {
	return stockKey{StoreID: in.StoreID, ItemID: in.ItemID}
}

// affectedPairs lists every (store, item) pair an operation touches, sorted.
func affectedPairs(spec KindSpec, in SubmitInput) []stockKey {
	set := map[stockKey]struct{}{sourceKey(in): {}}
	if spec.DualStore {
		set[stockKey{in.DestStoreID, in.ItemID}] = struct{}{}
	}
	if convEnabled(spec, previewFromSubmit(in, 0)) {
		destStore := in.StoreID
		if spec.DualStore {
			destStore = in.DestStoreID
		}
		for _, c := range in.Conversions {
			set[stockKey{destStore, c.DestItemID}] = struct{}{}
		}
	}
	keys := make([]stockKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].StoreID != keys[j].StoreID {
			return keys[i].StoreID < keys[j].StoreID
		}
		return keys[i].ItemID < keys[j].ItemID
	})
	return keys
}

// computeLines derives one OperationLine per affected pair from the same
// formula set the preview calculator uses.
func computeLines(spec KindSpec, in SubmitInput, current map[stockKey]float64) []OperationLine {
	srcCur := current[sourceKey(in)]
	pi := previewFromSubmit(in, srcCur)
	d := deduction(spec, pi)
	selfAdd := selfAddition(spec, pi)

	byKey := make(map[stockKey]*OperationLine)
	order := make([]stockKey, 0, len(current))
	add := func(k stockKey, delta, mainQty, convQty float64) {
		line, ok := byKey[k]
		if !ok {
			line = &OperationLine{StoreID: k.StoreID, ItemID: k.ItemID, PrevStock: current[k]}
			byKey[k] = line
			order = append(order, k)
		}
		line.Delta += delta
		line.MainQty += mainQty
		line.ConvertedQty += convQty
	}

	// Source pair. Full variants set the pair to exactly its self-addition
	// (zero for the source leg of a transfer), expressed here as a delta
	// against the locked current value.
	var srcDelta float64
	switch {
	case spec.FullVariant && spec.DualStore:
		srcDelta = -srcCur
	case spec.FullVariant:
		srcDelta = selfAdd - srcCur
	default:
		srcDelta = -d + selfAdd
	}
	add(sourceKey(in), srcDelta, declaredMain(spec, in), convertedTotal(spec, pi))

	if convEnabled(spec, pi) {
		destStore := in.StoreID
		if spec.DualStore {
			destStore = in.DestStoreID
		}
		for _, c := range in.Conversions {
			if !spec.DualStore && c.DestItemID == in.ItemID {
				// Self-additions are already folded into the source delta.
				continue
			}
			add(stockKey{destStore, c.DestItemID}, c.Qty, 0, c.Qty)
		}
	}

	if arrival := arrivalQty(spec, pi); arrival != 0 {
		add(stockKey{in.DestStoreID, in.ItemID}, arrival, arrival, 0)
	}

	lines := make([]OperationLine, 0, len(order))
	for _, k := range order {
		lines = append(lines, *byKey[k])
	}
	return lines
}

func conversionEntries(spec KindSpec, in SubmitInput) []ConversionEntry {
	if !convEnabled(spec, previewFromSubmit(in, 0)) {
		return nil
	}
	destStore := in.StoreID
	if spec.DualStore {
		destStore = in.DestStoreID
	}
	entries := make([]ConversionEntry, 0, len(in.Conversions))
	for _, c := range in.Conversions {
		entries = append(entries, ConversionEntry{
			SourceItemID: in.ItemID,
			DestItemID:   c.DestItemID,
			DestStoreID:  destStore,
			Qty:          c.Qty,
		})
	}
	return entries
}

func previewFromSubmit(in SubmitInput, currentStock float64) PreviewInput {
	return PreviewInput{
		Kind:              in.Kind,
		CurrentStock:      currentStock,
		SourceItemID:      in.ItemID,
		MainQty:           in.MainQty,
		SellQty:           in.SellQty,
		ReturnQty:         in.ReturnQty,
		ConversionEnabled: in.ConversionEnabled,
		Conversions:       in.Conversions,
	}
}

func declaredMain(spec KindSpec, in SubmitInput) float64 {
	switch {
	case spec.Sale:
		return in.SellQty
	case in.Kind == KindStockReturn:
		return in.ReturnQty
	default:
		return in.MainQty
	}
}

func clearanceOf(spec KindSpec) ClearanceType {
	if !spec.ConversionsAllowed && !spec.DualStore {
		return ""
	}
	if spec.FullVariant {
		return ClearanceFull
	}
	return ClearancePartial
}

// retryableCommitError reports whether a fresh attempt with a regenerated
// code could succeed: unique violations on the op code and serialization
// failures qualify.
func retryableCommitError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return pgErr.ConstraintName == "" || pgErr.ConstraintName == "stock_operations_code_key"
		case "40001", "40P01":
			return true
		}
	}
	return false
}

func serializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
