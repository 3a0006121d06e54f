package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-pos/meridian/internal/ledger"
	"github.com/meridian-pos/meridian/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, req Request) error
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, error)
	// ClaimPending flips PENDING to the given decision atomically and reports
	// whether this caller won the claim. Approvals record the clearance the
	// approver chose; declines pass it empty.
	ClaimPending(ctx context.Context, id uuid.UUID, status Status, actorID int64, clearance ledger.ClearanceType, reason string, at time.Time) (bool, error)
	RevertClaim(ctx context.Context, id uuid.UUID) error
	LinkOperation(ctx context.Context, id uuid.UUID, opID int64) error
}

// LedgerPort is the slice of the ledger engine transfers need.
type LedgerPort interface {
	Submit(ctx context.Context, in ledger.SubmitInput) (ledger.SubmitResult, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the transfer request state machine.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs transfer service. audit may be nil.
func NewService(repo RepositoryPort, ledgerSvc LedgerPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledgerSvc, audit: audit, logger: logger}
}

// CreateInput describes a new transfer request.
type CreateInput struct {
	SourceStore int64
	DestStore   int64
	ItemID      int64
	Qty         float64
	Full        bool
	Conversions []ledger.Conversion
	Note        string
	ActorID     int64
}

// ListFilter narrows List results.
type ListFilter struct {
	StoreID int64
	Status  Status
	Limit   int
	Offset  int
}

// Create records a PENDING request. No stock moves here.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	if in.SourceStore == 0 || in.DestStore == 0 || in.ItemID == 0 {
		return Request{}, fmt.Errorf("%w: source, destination and item are required", ErrValidation)
	}
	if in.SourceStore == in.DestStore {
		return Request{}, fmt.Errorf("%w: source and destination must differ", ErrValidation)
	}
	if !in.Full && in.Qty <= 0 && len(in.Conversions) == 0 {
		return Request{}, fmt.Errorf("%w: partial transfer needs a positive quantity or conversion lines", ErrValidation)
	}
	if in.Full && in.Qty != 0 {
		return Request{}, fmt.Errorf("%w: full transfer must not carry a quantity", ErrValidation)
	}
	for _, c := range in.Conversions {
		if c.DestItemID == 0 {
			return Request{}, fmt.Errorf("%w: conversion destination item is required", ErrValidation)
		}
		if c.Qty <= 0 {
			return Request{}, fmt.Errorf("%w: conversion quantity must be positive", ErrValidation)
		}
	}
	req := Request{
		ID:          uuid.New(),
		SourceStore: in.SourceStore,
		DestStore:   in.DestStore,
		ItemID:      in.ItemID,
		Qty:         in.Qty,
		Full:        in.Full,
		Conversions: in.Conversions,
		Note:        in.Note,
		Status:      StatusPending,
		RequestedBy: in.ActorID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, in.ActorID, "transfer:request", req.ID, map[string]any{
		"source_store": in.SourceStore,
		"dest_store":   in.DestStore,
		"item_id":      in.ItemID,
	})
	return req, nil
}

// Approve claims the request and commits the movement to the ledger. The
// approver picks the clearance type at decision time and it overrides the
// requested mode; an empty clearance falls back to what was requested. The
// claim happens first so two approvers racing on the same request resolve to
// exactly one committed operation; if the ledger rejects the commit the claim
// is reverted and the request stays PENDING.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actorID int64, clearance ledger.ClearanceType) (Request, ledger.SubmitResult, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, ledger.SubmitResult{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ledger.SubmitResult{}, ErrInvalidState
	}
	clearance, err = resolveClearance(req, clearance)
	if err != nil {
		return Request{}, ledger.SubmitResult{}, err
	}

	now := time.Now().UTC()
	won, err := s.repo.ClaimPending(ctx, id, StatusApproved, actorID, clearance, "", now)
	if err != nil {
		return Request{}, ledger.SubmitResult{}, err
	}
	if !won {
		return Request{}, ledger.SubmitResult{}, ErrInvalidState
	}

	result, err := s.ledger.Submit(ctx, submitInputFor(req, clearance, actorID))
	if err != nil {
		if revertErr := s.repo.RevertClaim(ctx, id); revertErr != nil {
			s.logger.Error("transfer claim revert failed", "request_id", id, "error", revertErr)
		}
		return Request{}, ledger.SubmitResult{}, err
	}
	if err := s.repo.LinkOperation(ctx, id, result.OpID); err != nil {
		s.logger.Error("transfer operation link failed", "request_id", id, "op_id", result.OpID, "error", err)
	}

	req.Status = StatusApproved
	req.DecidedBy = actorID
	req.DecidedAt = &now
	req.Clearance = clearance
	req.OpID = result.OpID
	s.recordAudit(ctx, actorID, "transfer:approve", id, map[string]any{
		"op_id":     result.OpID,
		"op_code":   result.OpCode,
		"clearance": string(clearance),
	})
	return req, result, nil
}

// Decline rejects a pending request. A reason is mandatory.
func (s *Service) Decline(ctx context.Context, id uuid.UUID, actorID int64, reason string) (Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Request{}, fmt.Errorf("%w: a decline reason is required", ErrValidation)
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidState
	}

	now := time.Now().UTC()
	won, err := s.repo.ClaimPending(ctx, id, StatusDeclined, actorID, "", reason, now)
	if err != nil {
		return Request{}, err
	}
	if !won {
		return Request{}, ErrInvalidState
	}

	req.Status = StatusDeclined
	req.DecidedBy = actorID
	req.DecidedAt = &now
	req.Reason = reason
	s.recordAudit(ctx, actorID, "transfer:decline", id, map[string]any{"reason": reason})
	return req, nil
}

// Get loads one request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.repo.Get(ctx, id)
}

// List returns requests matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// resolveClearance normalises the approver's choice against what the request
// carries. Empty means "as requested". A partial clearance needs something
// to size the deduction from: the requested quantity or conversion lines.
func resolveClearance(req Request, clearance ledger.ClearanceType) (ledger.ClearanceType, error) {
	switch clearance {
	case "":
		if req.Full {
			return ledger.ClearanceFull, nil
		}
		return ledger.ClearancePartial, nil
	case ledger.ClearanceFull:
		return ledger.ClearanceFull, nil
	case ledger.ClearancePartial:
		if req.Qty <= 0 && len(req.Conversions) == 0 {
			return "", fmt.Errorf("%w: partial clearance needs a requested quantity or conversion lines", ErrValidation)
		}
		return ledger.ClearancePartial, nil
	default:
		return "", fmt.Errorf("%w: unknown clearance type %q", ErrValidation, clearance)
	}
}

// submitInputFor maps an approved request onto a ledger submission. A full
// clearance clears whatever the source holds at commit time; a partial one
// moves the quantity the request asked for, or its conversion fan-out.
func submitInputFor(req Request, clearance ledger.ClearanceType, actorID int64) ledger.SubmitInput {
	kind := ledger.KindTransferPartial
	mainQty := req.Qty
	if clearance == ledger.ClearanceFull {
		kind = ledger.KindTransferFull
		mainQty = 0
	}
	return ledger.SubmitInput{
		Kind:              kind,
		StoreID:           req.SourceStore,
		DestStoreID:       req.DestStore,
		ItemID:            req.ItemID,
		MainQty:           mainQty,
		ConversionEnabled: len(req.Conversions) > 0,
		Conversions:       req.Conversions,
		ActorID:           actorID,
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transfer_request",
		EntityID: id.String(),
		Meta:     meta,
	}); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
