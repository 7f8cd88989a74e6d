package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/server/response"
	"github.com/pulsedelta/backend/internal/validate"
)

// UserService is the slice of the user service the handler needs.
type UserService interface {
	Profile(ctx context.Context, address string) (domain.UserProfile, error)
	Positions(ctx context.Context, address string) ([]domain.Position, error)
	History(ctx context.Context, address string, opts domain.ListOpts) ([]domain.TradeRecord, int64, error)
}

// UserHandler serves wallet views.
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// GetProfile returns a wallet's activity summary.
// GET /api/v1/users/{address}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	addr, err := validate.UserAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, r, h.logger, err, "User", "get user profile")
		return
	}

	profile, err := h.users.Profile(r.Context(), addr)
	if err != nil {
		writeError(w, r, h.logger, err, "User", "get user profile")
		return
	}
	response.Success(w, http.StatusOK, profile, "User profile retrieved successfully")
}

// GetPositions returns a wallet's open positions.
// GET /api/v1/users/{address}/positions
func (h *UserHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	addr, err := validate.UserAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, r, h.logger, err, "User", "get user positions")
		return
	}

	positions, err := h.users.Positions(r.Context(), addr)
	if err != nil {
		writeError(w, r, h.logger, err, "User", "get user positions")
		return
	}
	response.Success(w, http.StatusOK, positions, "User positions retrieved successfully")
}

// GetHistory returns one page of a wallet's trades, newest first.
// GET /api/v1/users/{address}/history?page=1&limit=20
func (h *UserHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	p, err := validate.UserHistory(pathParam(r, "address"), r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err, "User", "get user history")
		return
	}

	trades, total, err := h.users.History(r.Context(), p.Address, listOpts(p.Page))
	if err != nil {
		writeError(w, r, h.logger, err, "User", "get user history")
		return
	}
	response.Paginated(w, trades, p.Page.Page, p.Page.Limit, total, "User history retrieved successfully")
}
