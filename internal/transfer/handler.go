package transfer

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-pos/meridian/internal/ledger"
	"github.com/meridian-pos/meridian/internal/platform/httpx"
	"github.com/meridian-pos/meridian/internal/shared"
)

// Handler wires HTTP endpoints for transfer requests.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a transfer handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transfers", h.handleCreate)
	r.Post("/transfers/{id}/approve", h.handleApprove)
	r.Post("/transfers/{id}/decline", h.handleDecline)
	r.Get("/transfers/{id}", h.handleGet)
	r.Get("/transfers", h.handleList)
}

var errMappings = []httpx.Mapping{
	{Err: ErrValidation, Code: "VALIDATION_FAILED", Status: http.StatusBadRequest},
	{Err: ledger.ErrValidation, Code: "VALIDATION_FAILED", Status: http.StatusBadRequest},
	{Err: ErrNotFound, Code: "NOT_FOUND", Status: http.StatusNotFound},
	{Err: ErrInvalidState, Code: "ALREADY_DECIDED", Status: http.StatusConflict},
	{Err: ledger.ErrConflict, Code: "CONFLICT", Status: http.StatusConflict},
}

type createRequest struct {
	SourceStore int64               `json:"source_store_id" validate:"required"`
	DestStore   int64               `json:"dest_store_id" validate:"required"`
	ItemID      int64               `json:"item_id" validate:"required"`
	Qty         float64             `json:"qty" validate:"gte=0"`
	Full        bool                `json:"full"`
	Conversions []ledger.Conversion `json:"conversions"`
	Note        string              `json:"note"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing X-Actor-ID header")
		return
	}

	created, err := h.service.Create(r.Context(), CreateInput{
		SourceStore: req.SourceStore,
		DestStore:   req.DestStore,
		ItemID:      req.ItemID,
		Qty:         req.Qty,
		Full:        req.Full,
		Conversions: req.Conversions,
		Note:        req.Note,
		ActorID:     actorID,
	})
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type approveRequest struct {
	Clearance string `json:"clearance" validate:"omitempty,oneof=FULL PARTIAL"`
}

type approveResponse struct {
	Request Request             `json:"request"`
	Result  ledger.SubmitResult `json:"result"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.decisionParams(w, r)
	if !ok {
		return
	}
	// The body is optional: an empty clearance approves as requested.
	var body approveRequest
	if err := httpx.DecodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	req, result, err := h.service.Approve(r.Context(), id, actorID, ledger.ClearanceType(body.Clearance))
	if err != nil {
		h.logger.Warn("approve transfer", slog.String("request_id", id.String()), slog.Any("error", err))
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, approveResponse{Request: req, Result: result})
}

type declineRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.decisionParams(w, r)
	if !ok {
		return
	}
	var body declineRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed request body")
		return
	}
	req, err := h.service.Decline(r.Context(), id, actorID, body.Reason)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request id")
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("store_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid store_id")
			return
		}
		filter.StoreID = id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) decisionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, int64, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request id")
		return uuid.Nil, 0, false
	}
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing X-Actor-ID header")
		return uuid.Nil, 0, false
	}
	return id, actorID, true
}
