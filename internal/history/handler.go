package history

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-pos/meridian/internal/ledger"
	"github.com/meridian-pos/meridian/internal/platform/httpx"
)

// Handler wires the history listing endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a history handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers history routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/operations", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Kind: ledger.OpKind(q.Get("kind"))}
	if v := q.Get("store_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid store_id")
			return
		}
		filter.StoreID = id
	}
	for _, span := range []struct {
		name string
		dst  *time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		if v := q.Get(span.name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid "+span.name)
				return
			}
			*span.dst = t
		}
	}
	if v := q.Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("per_page"); v != "" {
		filter.PerPage, _ = strconv.Atoi(v)
	}

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Warn("list history", slog.Any("error", err))
		httpx.RespondMapped(w, err, []httpx.Mapping{
			{Err: ErrValidation, Code: "VALIDATION_FAILED", Status: http.StatusBadRequest},
		})
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}
