package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-pos/meridian/internal/platform/httpx"
)

// Handler wires HTTP endpoints for master data.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stores", h.handleListStores)
	r.Post("/stores", h.handleCreateStore)
	r.Get("/stores/{id}", h.handleGetStore)
	r.Put("/stores/{id}", h.handleUpdateStore)
	r.Get("/stores/{id}/stock", h.handleListStock)
	r.Get("/stores/{id}/stock/{itemID}", h.handleGetStock)

	r.Get("/items", h.handleListItems)
	r.Post("/items", h.handleCreateItem)
	r.Get("/items/{id}", h.handleGetItem)
	r.Put("/items/{id}", h.handleUpdateItem)
}

var errMappings = []httpx.Mapping{
	{Err: ErrValidation, Code: "VALIDATION_FAILED", Status: http.StatusBadRequest},
	{Err: ErrNotFound, Code: "NOT_FOUND", Status: http.StatusNotFound},
	{Err: ErrDuplicate, Code: "DUPLICATE_CODE", Status: http.StatusConflict},
}

type storeRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Terminal string `json:"terminal"`
	Active   *bool  `json:"active"`
}

type itemRequest struct {
	SKU      string `json:"sku" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Unit     string `json:"unit" validate:"required"`
	Category string `json:"category"`
	Active   *bool  `json:"active"`
}

func (h *Handler) handleListStores(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	stores, err := h.service.ListStores(r.Context(), includeInactive)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, stores)
}

func (h *Handler) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.CreateStore(r.Context(), Store{Code: req.Code, Name: req.Name, Terminal: req.Terminal})
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetStore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	store, err := h.service.GetStore(r.Context(), id)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req storeRequest
	if !h.decode(w, r, &req) {
		return
	}
	store := Store{ID: id, Code: req.Code, Name: req.Name, Terminal: req.Terminal, Active: true}
	if req.Active != nil {
		store.Active = *req.Active
	}
	if err := h.service.UpdateStore(r.Context(), store); err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) handleListStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	levels, err := h.service.ListStock(r.Context(), id)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, levels)
}

func (h *Handler) handleGetStock(w http.ResponseWriter, r *http.Request) {
	storeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	level, err := h.service.GetStock(r.Context(), storeID, itemID)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, level)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	filter := ItemFilter{Search: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}
	items, total, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.CreateItem(r.Context(), Item{SKU: req.SKU, Name: req.Name, Unit: req.Unit, Category: req.Category})
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req itemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item := Item{ID: id, SKU: req.SKU, Name: req.Name, Unit: req.Unit, Category: req.Category, Active: true}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if err := h.service.UpdateItem(r.Context(), item); err != nil {
		httpx.RespondMapped(w, err, errMappings)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid "+name)
		return 0, false
	}
	return id, true
}
