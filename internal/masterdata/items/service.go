package items

import (
	"context"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Lookup resolves an item by exact name or barcode.
func (s *Service) Lookup(ctx context.Context, nameOrBarcode string) (Item, error) {
	if nameOrBarcode == "" {
		return Item{}, shared.ErrNotFound
	}
	return s.repo.Lookup(ctx, nameOrBarcode)
}

func (s *Service) Create(ctx context.Context, form ItemForm) (Item, error) {
	if err := validateForm(form); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, form.toItem())
}

func (s *Service) Update(ctx context.Context, id int64, form ItemForm) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := validateForm(form); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, form.toItem())
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}
