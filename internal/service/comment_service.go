package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pulsedelta/backend/internal/domain"
)

// Comment event types published on the signal bus.
const (
	CommentCreated = "comment.created"
	CommentDeleted = "comment.deleted"
)

// CommentService manages market comments and fans changes out over the
// signal bus.
type CommentService struct {
	comments domain.CommentStore
	markets  domain.MarketStore
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewCommentService creates a CommentService. bus may be nil, in which case
// no events are published.
func NewCommentService(
	comments domain.CommentStore,
	markets domain.MarketStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		comments: comments,
		markets:  markets,
		bus:      bus,
		logger:   logger,
	}
}

// List returns one page of a market's comments, newest first, and the total
// number of live comments on the market.
func (s *CommentService) List(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Comment, int64, error) {
	comments, err := s.comments.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("comment_service: list %s: %w", marketID, err)
	}
	total, err := s.comments.CountByMarket(ctx, marketID)
	if err != nil {
		return nil, 0, fmt.Errorf("comment_service: count %s: %w", marketID, err)
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return comments, total, nil
}

// Create stores a comment on an existing market. A reply's parent must be a
// live comment on the same market.
func (s *CommentService) Create(ctx context.Context, nc domain.NewComment) (domain.Comment, error) {
	m, err := s.markets.GetByID(ctx, nc.MarketID)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("comment_service: market %s: %w", nc.MarketID, err)
	}
	nc.MarketID = m.ID

	if nc.ParentID != nil {
		parent, err := s.comments.GetByID(ctx, *nc.ParentID)
		if err != nil {
			return domain.Comment{}, fmt.Errorf("comment_service: parent %d: %w", *nc.ParentID, err)
		}
		if !strings.EqualFold(parent.MarketID, nc.MarketID) {
			return domain.Comment{}, fmt.Errorf("comment_service: parent %d on another market: %w", *nc.ParentID, domain.ErrNotFound)
		}
	}

	c, err := s.comments.Create(ctx, nc)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("comment_service: create: %w", err)
	}

	s.logger.InfoContext(ctx, "comment_service: comment created",
		slog.Int64("comment_id", c.ID),
		slog.String("market_id", c.MarketID),
	)
	s.publish(ctx, CommentCreated, c)
	return c, nil
}

// Delete soft-deletes a comment on behalf of requester, who must be its
// author. Addresses compare case-insensitively.
func (s *CommentService) Delete(ctx context.Context, id int64, requester string) error {
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("comment_service: get %d: %w", id, err)
	}
	if !strings.EqualFold(c.Author, requester) {
		return fmt.Errorf("comment_service: delete %d: %w", id, domain.ErrForbidden)
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		return fmt.Errorf("comment_service: delete %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "comment_service: comment deleted",
		slog.Int64("comment_id", id),
		slog.String("market_id", c.MarketID),
	)
	s.publish(ctx, CommentDeleted, c)
	return nil
}

// publish announces a comment change. Failures are logged and swallowed.
func (s *CommentService) publish(ctx context.Context, eventType string, c domain.Comment) {
	if s.bus == nil {
		return
	}
	channel := domain.CommentChannel(strings.ToLower(c.MarketID))
	payload, err := json.Marshal(domain.CommentEvent{Type: eventType, Channel: channel, Comment: c})
	if err != nil {
		s.logger.ErrorContext(ctx, "comment_service: marshal event failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "comment_service: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
