package locations

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// RentalLocation returns the active rental warehouse.
func (s *Service) RentalLocation(ctx context.Context) (Location, error) {
	return s.repo.RentalLocation(ctx)
}

func (s *Service) Create(ctx context.Context, location Location) (Location, error) {
	if err := s.validate(location); err != nil {
		return Location{}, err
	}
	return s.repo.Create(ctx, location)
}

func (s *Service) Update(ctx context.Context, id int64, location Location) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(location); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, location)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(l Location) error {
	if strings.TrimSpace(l.Code) == "" {
		return fmt.Errorf("%w: location code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: location name is required", shared.ErrValidation)
	}
	return nil
}
