package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pulsedelta/backend/internal/domain"
)

// UserService serves wallet views derived from trade events.
type UserService struct {
	users  domain.UserStore
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users domain.UserStore, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// Profile returns the wallet summary, or domain.ErrNotFound for a wallet
// with no activity.
func (s *UserService) Profile(ctx context.Context, address string) (domain.UserProfile, error) {
	p, err := s.users.Profile(ctx, address)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("user_service: profile %s: %w", address, err)
	}
	return p, nil
}

// Positions returns the wallet's open positions.
func (s *UserService) Positions(ctx context.Context, address string) ([]domain.Position, error) {
	positions, err := s.users.Positions(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("user_service: positions %s: %w", address, err)
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	return positions, nil
}

// History returns one page of the wallet's trades, newest first, and the
// total trade count.
func (s *UserService) History(ctx context.Context, address string, opts domain.ListOpts) ([]domain.TradeRecord, int64, error) {
	trades, err := s.users.History(ctx, address, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("user_service: history %s: %w", address, err)
	}
	total, err := s.users.HistoryCount(ctx, address)
	if err != nil {
		return nil, 0, fmt.Errorf("user_service: history count %s: %w", address, err)
	}
	if trades == nil {
		trades = []domain.TradeRecord{}
	}
	return trades, total, nil
}
