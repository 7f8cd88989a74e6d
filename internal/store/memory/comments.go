package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/pulsedelta/backend/internal/domain"
)

// Create stores a new comment and returns it with its id.
func (s CommentStore) Create(_ context.Context, c domain.NewComment) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextComment++
	out := domain.Comment{
		ID:        s.nextComment,
		MarketID:  c.MarketID,
		Author:    c.Author,
		Content:   c.Content,
		ParentID:  c.ParentID,
		CreatedAt: s.now(),
	}
	s.comments[out.ID] = out
	return out, nil
}

// GetByID returns a live comment.
func (s CommentStore) GetByID(_ context.Context, id int64) (domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok || s.deleted[id] {
		return domain.Comment{}, domain.ErrNotFound
	}
	return c, nil
}

// ListByMarket returns live comments of a market, newest first.
func (s CommentStore) ListByMarket(_ context.Context, marketID string, opts domain.ListOpts) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.marketComments(marketID)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, opts), nil
}

// CountByMarket returns the number of live comments on a market.
func (s CommentStore) CountByMarket(_ context.Context, marketID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.marketComments(marketID))), nil
}

// CountByAuthor returns the number of live comments by a wallet.
func (s CommentStore) CountByAuthor(_ context.Context, author string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for id, c := range s.comments {
		if !s.deleted[id] && strings.EqualFold(c.Author, author) {
			n++
		}
	}
	return n, nil
}

// Delete soft-deletes a comment.
func (s CommentStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok || s.deleted[id] {
		return domain.ErrNotFound
	}
	s.deleted[id] = true
	return nil
}

func (s *Store) marketComments(marketID string) []domain.Comment {
	var out []domain.Comment
	for id, c := range s.comments {
		if !s.deleted[id] && strings.EqualFold(c.MarketID, marketID) {
			out = append(out, c)
		}
	}
	return out
}
