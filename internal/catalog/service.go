package catalog

import (
	"context"
	"fmt"
	"strings"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	ListStores(ctx context.Context, includeInactive bool) ([]Store, error)
	GetStore(ctx context.Context, id int64) (Store, error)
	CreateStore(ctx context.Context, store Store) (Store, error)
	UpdateStore(ctx context.Context, store Store) error

	ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	CreateItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, item Item) error

	GetStock(ctx context.Context, storeID, itemID int64) (float64, error)
	ListStock(ctx context.Context, storeID int64) ([]StockLevel, error)
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	Search string
	Limit  int
	Offset int
}

// Service exposes store and item master data.
type Service struct {
	repo RepositoryPort
}

// NewService constructs catalog service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListStores(ctx context.Context, includeInactive bool) ([]Store, error) {
	return s.repo.ListStores(ctx, includeInactive)
}

func (s *Service) GetStore(ctx context.Context, id int64) (Store, error) {
	if id <= 0 {
		return Store{}, fmt.Errorf("%w: invalid store id", ErrValidation)
	}
	return s.repo.GetStore(ctx, id)
}

func (s *Service) CreateStore(ctx context.Context, store Store) (Store, error) {
	if err := validateStore(store); err != nil {
		return Store{}, err
	}
	store.Active = true
	return s.repo.CreateStore(ctx, store)
}

func (s *Service) UpdateStore(ctx context.Context, store Store) error {
	if store.ID <= 0 {
		return fmt.Errorf("%w: invalid store id", ErrValidation)
	}
	if err := validateStore(store); err != nil {
		return err
	}
	return s.repo.UpdateStore(ctx, store)
}

func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.ListItems(ctx, filter)
}

func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, fmt.Errorf("%w: invalid item id", ErrValidation)
	}
	return s.repo.GetItem(ctx, id)
}

func (s *Service) CreateItem(ctx context.Context, item Item) (Item, error) {
	if err := validateItem(item); err != nil {
		return Item{}, err
	}
	item.Active = true
	return s.repo.CreateItem(ctx, item)
}

func (s *Service) UpdateItem(ctx context.Context, item Item) error {
	if item.ID <= 0 {
		return fmt.Errorf("%w: invalid item id", ErrValidation)
	}
	if err := validateItem(item); err != nil {
		return err
	}
	return s.repo.UpdateItem(ctx, item)
}

// GetStock reads one pair's current quantity. Preview callers hit this before
// submitting to show projections against live numbers.
func (s *Service) GetStock(ctx context.Context, storeID, itemID int64) (StockLevel, error) {
	if storeID <= 0 || itemID <= 0 {
		return StockLevel{}, fmt.Errorf("%w: store and item are required", ErrValidation)
	}
	qty, err := s.repo.GetStock(ctx, storeID, itemID)
	if err != nil {
		return StockLevel{}, err
	}
	return StockLevel{StoreID: storeID, ItemID: itemID, Qty: qty}, nil
}

func (s *Service) ListStock(ctx context.Context, storeID int64) ([]StockLevel, error) {
	if storeID <= 0 {
		return nil, fmt.Errorf("%w: invalid store id", ErrValidation)
	}
	return s.repo.ListStock(ctx, storeID)
}

func validateStore(store Store) error {
	if strings.TrimSpace(store.Code) == "" {
		return fmt.Errorf("%w: store code is required", ErrValidation)
	}
	if strings.TrimSpace(store.Name) == "" {
		return fmt.Errorf("%w: store name is required", ErrValidation)
	}
	return nil
}

func validateItem(item Item) error {
	if strings.TrimSpace(item.SKU) == "" {
		return fmt.Errorf("%w: item sku is required", ErrValidation)
	}
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: item name is required", ErrValidation)
	}
	if strings.TrimSpace(item.Unit) == "" {
		return fmt.Errorf("%w: item unit is required", ErrValidation)
	}
	return nil
}
