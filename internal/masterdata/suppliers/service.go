package suppliers

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	if filters.Kind != "" && !Kind(filters.Kind).Valid() {
		return nil, 0, fmt.Errorf("%w: unknown kind %q", shared.ErrValidation, filters.Kind)
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, id int64, supplier Supplier) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(supplier); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, supplier)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(sup Supplier) error {
	if !sup.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", shared.ErrValidation, sup.Kind)
	}
	if strings.TrimSpace(sup.Name) == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	return nil
}
