package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore reads indexed market metadata.
type MarketStore interface {
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, filter MarketFilter, opts ListOpts) ([]Market, error)
	Count(ctx context.Context, filter MarketFilter) (int64, error)
	CountByStatus(ctx context.Context) (map[MarketStatus]int64, error)
}

// EventStore aggregates indexed market events. It never mutates events.
type EventStore interface {
	VolumeSeries(ctx context.Context, q SeriesQuery) ([]VolumeBucket, error)
	VolumeTotal(ctx context.Context, q TotalQuery) (VolumeTotal, error)
	MarketActivity(ctx context.Context, since, until time.Time) ([]MarketActivity, error)
	CountTraders(ctx context.Context) (int64, error)
	CountNewTraders(ctx context.Context, since time.Time) (int64, error)
	ListBefore(ctx context.Context, before time.Time, afterID int64, limit int) ([]MarketEvent, error)
}

// CommentStore persists market comments.
type CommentStore interface {
	Create(ctx context.Context, c NewComment) (Comment, error)
	GetByID(ctx context.Context, id int64) (Comment, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Comment, error)
	CountByMarket(ctx context.Context, marketID string) (int64, error)
	CountByAuthor(ctx context.Context, author string) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// UserStore derives wallet views from trade events.
type UserStore interface {
	Profile(ctx context.Context, address string) (UserProfile, error)
	Positions(ctx context.Context, address string) ([]Position, error)
	History(ctx context.Context, address string, opts ListOpts) ([]TradeRecord, error)
	HistoryCount(ctx context.Context, address string) (int64, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
