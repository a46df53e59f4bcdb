package employees

import (
	"context"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	internalshared "github.com/stockyard-wms/stockyard/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Employee, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Employee, error) {
	if id <= 0 {
		return Employee{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Resolve turns a header token into the acting identity.
func (s *Service) Resolve(ctx context.Context, token string) (internalshared.Actor, error) {
	if token == "" {
		return internalshared.Actor{}, internalshared.ErrActorMissing
	}
	emp, err := s.repo.ByToken(ctx, token)
	if err != nil {
		return internalshared.Actor{}, internalshared.ErrActorMissing
	}
	return internalshared.Actor{ID: emp.ID, Name: emp.Name, Role: string(emp.Role)}, nil
}
