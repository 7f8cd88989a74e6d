package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsedelta/backend/internal/domain"
)

// CommentStore implements domain.CommentStore. Deleted comments keep their
// row with deleted_at set and are invisible to every read.
type CommentStore struct {
	pool *pgxpool.Pool
}

var _ domain.CommentStore = (*CommentStore)(nil)

// NewCommentStore creates a CommentStore backed by pool.
func NewCommentStore(pool *pgxpool.Pool) *CommentStore {
	return &CommentStore{pool: pool}
}

const commentCols = `id, market_id, author, content, parent_id, upvotes, downvotes, created_at`

func scanComment(row pgx.Row) (domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.MarketID, &c.Author, &c.Content, &c.ParentID,
		&c.Upvotes, &c.Downvotes, &c.CreatedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, err
}

// Create inserts a comment and returns it with its id and timestamp.
func (s *CommentStore) Create(ctx context.Context, nc domain.NewComment) (domain.Comment, error) {
	c, err := scanComment(s.pool.QueryRow(ctx, `
		INSERT INTO comments (market_id, author, content, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+commentCols,
		nc.MarketID, nc.Author, nc.Content, nc.ParentID,
	))
	if err != nil {
		return domain.Comment{}, dataErr("create comment", err)
	}
	return c, nil
}

// GetByID returns a visible comment.
func (s *CommentStore) GetByID(ctx context.Context, id int64) (domain.Comment, error) {
	c, err := scanComment(s.pool.QueryRow(ctx,
		`SELECT `+commentCols+` FROM comments WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Comment{}, fmt.Errorf("postgres: get comment %d: %w", id, domain.ErrNotFound)
		}
		return domain.Comment{}, dataErr(fmt.Sprintf("get comment %d", id), err)
	}
	return c, nil
}

// ListByMarket returns one page of a market's comments, newest first.
func (s *CommentStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+commentCols+`
		FROM comments
		WHERE lower(market_id) = lower($1) AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		marketID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, dataErr("list comments", err)
	}
	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Comment, error) {
		return scanComment(row)
	})
	if err != nil {
		return nil, dataErr("scan comments", err)
	}
	return comments, nil
}

// CountByMarket returns the number of visible comments on a market.
func (s *CommentStore) CountByMarket(ctx context.Context, marketID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM comments WHERE lower(market_id) = lower($1) AND deleted_at IS NULL`,
		marketID).Scan(&n)
	if err != nil {
		return 0, dataErr("count market comments", err)
	}
	return n, nil
}

// CountByAuthor returns the number of visible comments by a wallet.
func (s *CommentStore) CountByAuthor(ctx context.Context, author string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM comments WHERE lower(author) = lower($1) AND deleted_at IS NULL`,
		author).Scan(&n)
	if err != nil {
		return 0, dataErr("count author comments", err)
	}
	return n, nil
}

// Delete hides a comment. Deleting a missing or already deleted comment
// returns domain.ErrNotFound.
func (s *CommentStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE comments SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return dataErr(fmt.Sprintf("delete comment %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete comment %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
