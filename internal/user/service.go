package user

import (
	"context"

	"github.com/Dprinces/Award-Portal-sub002/internal/model"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) CreateUser(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = "voter"
	}
	return s.repo.CreateUser(ctx, user)
}

func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}
