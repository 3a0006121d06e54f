package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-pos/meridian/internal/platform/httpx"
	"github.com/meridian-pos/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the ledger engine.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/operations", h.handleSubmit)
	r.Post("/operations/preview", h.handlePreview)
	r.Post("/operations/{id}/reverse", h.handleReverse)
	r.Get("/operations/{id}", h.handleGet)
	r.Get("/operation-kinds", h.handleKinds)
}

var errMappings = []httpx.Mapping{
	{Err: ErrValidation, Code: "VALIDATION_FAILED", Status: http.StatusBadRequest},
	{Err: ErrUnknownKind, Code: "VALIDATION_FAILED", Status: http.StatusBadRequest},
	{Err: ErrReferenceNotFound, Code: "REFERENCE_NOT_FOUND", Status: http.StatusNotFound},
	{Err: ErrNotFound, Code: "NOT_FOUND", Status: http.StatusNotFound},
	{Err: ErrAlreadyReversed, Code: "ALREADY_REVERSED", Status: http.StatusConflict},
	{Err: ErrConflict, Code: "CONFLICT", Status: http.StatusConflict},
}

type conversionDTO struct {
	DestItemID int64   `json:"dest_item_id" validate:"required"`
	Qty        float64 `json:"qty" validate:"gt=0"`
}

type submitRequest struct {
	Kind              string          `json:"kind" validate:"required"`
	StoreID           int64           `json:"store_id" validate:"required"`
	DestStoreID       int64           `json:"dest_store_id"`
	ItemID            int64           `json:"item_id" validate:"required"`
	MainQty           float64         `json:"main_qty"`
	SellQty           float64         `json:"sell_qty"`
	ReturnQty         float64         `json:"return_qty"`
	ConversionEnabled bool            `json:"conversion_enabled"`
	Conversions       []conversionDTO `json:"conversions" validate:"dive"`
	RefOpID           int64           `json:"ref_op_id"`
	DirectReturn      bool            `json:"direct_return"`
	SalePrice         float64         `json:"sale_price"`
	BillRef           string          `json:"bill_ref"`
	LorryNo           string          `json:"lorry_no"`
	Customer          string          `json:"customer"`
	WithTrip          bool            `json:"with_trip"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
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

	in := SubmitInput{
		Kind:              OpKind(req.Kind),
		StoreID:           req.StoreID,
		DestStoreID:       req.DestStoreID,
		ItemID:            req.ItemID,
		MainQty:           req.MainQty,
		SellQty:           req.SellQty,
		ReturnQty:         req.ReturnQty,
		ConversionEnabled: req.ConversionEnabled,
		RefOpID:           req.RefOpID,
		DirectReturn:      req.DirectReturn,
		SalePrice:         req.SalePrice,
		BillRef:           req.BillRef,
		LorryNo:           req.LorryNo,
		Customer:          req.Customer,
		WithTrip:          req.WithTrip,
		ActorID:           actorID,
		IdempotencyKey:    r.Header.Get("Idempotency-Key"),
	}
	for _, c := range req.Conversions {
		in.Conversions = append(in.Conversions, Conversion{DestItemID: c.DestItemID, Qty: c.Qty})
	}

	result, err := h.service.Submit(r.Context(), in)
	if err != nil {
		h.logger.Warn("submit operation", slog.String("kind", req.Kind), slog.Any("error", err))
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var in PreviewInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed request body")
		return
	}
	// Preview never fails on business grounds, only on malformed input.
	preview, err := Calculate(in)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	opID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || opID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid operation id")
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing X-Actor-ID header")
		return
	}
	result, err := h.service.Reverse(r.Context(), opID, actorID)
	if err != nil {
		h.logger.Warn("reverse operation", slog.Int64("op_id", opID), slog.Any("error", err))
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type operationResponse struct {
	Operation   StockOperation    `json:"operation"`
	Lines       []OperationLine   `json:"lines"`
	Conversions []ConversionEntry `json:"conversions"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	opID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || opID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid operation id")
		return
	}
	op, lines, conversions, err := h.service.GetOperationDetail(r.Context(), opID)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, operationResponse{Operation: op, Lines: lines, Conversions: conversions})
}

func (h *Handler) handleKinds(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, Kinds())
}
