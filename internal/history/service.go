package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-pos/meridian/internal/ledger"
	"github.com/meridian-pos/meridian/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter) ([]row, int, error)
}

// Page is one page of history entries.
type Page struct {
	Entries    []Entry           `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}

// Service serves the operation history read model. Pages are cached in Redis
// for a short TTL; concurrent misses on the same key collapse into one
// database round trip.
type Service struct {
	repo   RepositoryPort
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs history service. cache may be nil to disable caching.
func NewService(repo RepositoryPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// List returns one history page for the filter.
func (s *Service) List(ctx context.Context, filter Filter) (Page, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 || filter.PerPage > 200 {
		filter.PerPage = shared.DefaultPerPage
	}
	if filter.Kind != "" {
		if _, ok := ledger.Spec(filter.Kind); !ok {
			return Page{}, fmt.Errorf("%w: unknown kind %q", ErrValidation, filter.Kind)
		}
	}

	key := cacheKey(filter)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var page Page
			if err := json.Unmarshal(raw, &page); err == nil {
				return page, nil
			}
		}
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		page, err := s.build(ctx, filter)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(page); err == nil {
				if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
					s.logger.Warn("history cache set failed", "key", key, "error", err)
				}
			}
		}
		return page, nil
	})
	if err != nil {
		return Page{}, err
	}
	return result.(Page), nil
}

func (s *Service) build(ctx context.Context, filter Filter) (Page, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := r.Entry
		if r.HasWastage {
			w := reconstructWastage(r)
			e.Wastage = &w
		}
		entries = append(entries, e)
	}
	return Page{Entries: entries, Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}, nil
}

// reconstructWastage replays the commit-time formula against the persisted
// quantities of the source line.
func reconstructWastage(r row) float64 {
	spec, _ := ledger.Spec(r.Kind)
	primary := r.MainQty
	switch {
	case spec.Sale:
		primary = r.SellQty
	case r.Kind == ledger.KindConversionFull:
		primary = 0
	}
	return primary + r.Converted - r.PrevStock
}

func cacheKey(filter Filter) string {
	return fmt.Sprintf("meridian:history:%d:%s:%d:%d:%d:%d",
		filter.StoreID, filter.Kind, filter.From.Unix(), filter.To.Unix(), filter.Page, filter.PerPage)
}
