// Package memory implements the domain stores in process. It backs the demo
// mode and tests; aggregation semantics match the postgres package.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulsedelta/backend/internal/domain"
)

// Store holds markets, events and comments in memory.
type Store struct {
	mu          sync.RWMutex
	markets     map[string]domain.Market
	events      []domain.MarketEvent
	comments    map[int64]domain.Comment
	deleted     map[int64]bool
	nextComment int64
	nextEvent   int64
	now         func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		markets:  make(map[string]domain.Market),
		comments: make(map[int64]domain.Comment),
		deleted:  make(map[int64]bool),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddMarket inserts or replaces a market.
func (s *Store) AddMarket(m domain.Market) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[strings.ToLower(m.ID)] = m
}

// AddEvents appends indexed events, assigning ids to events without one.
func (s *Store) AddEvents(events ...domain.MarketEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if e.ID == 0 {
			e.ID = s.nextEvent + 1
		}
		if e.ID > s.nextEvent {
			s.nextEvent = e.ID
		}
		s.events = append(s.events, e)
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// MarketStore is the domain.MarketStore view of a Store.
type MarketStore struct{ *Store }

// EventStore is the domain.EventStore view of a Store.
type EventStore struct{ *Store }

// CommentStore is the domain.CommentStore view of a Store.
type CommentStore struct{ *Store }

// UserStore is the domain.UserStore view of a Store.
type UserStore struct{ *Store }

// Markets returns the market view.
func (s *Store) Markets() MarketStore { return MarketStore{s} }

// Events returns the event view.
func (s *Store) Events() EventStore { return EventStore{s} }

// Comments returns the comment view.
func (s *Store) Comments() CommentStore { return CommentStore{s} }

// Users returns the user view.
func (s *Store) Users() UserStore { return UserStore{s} }

var (
	_ domain.MarketStore  = MarketStore{}
	_ domain.EventStore   = EventStore{}
	_ domain.CommentStore = CommentStore{}
	_ domain.UserStore    = UserStore{}
)

// ---------------------------------------------------------------------------
// MarketStore
// ---------------------------------------------------------------------------

// GetByID returns the market with the given id.
func (s MarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[strings.ToLower(id)]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

// List returns markets matching filter, newest first.
func (s MarketStore) List(_ context.Context, filter domain.MarketFilter, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filterMarkets(filter)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts), nil
}

// Count returns the number of markets matching filter.
func (s MarketStore) Count(_ context.Context, filter domain.MarketFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterMarkets(filter))), nil
}

// CountByStatus returns market counts keyed by status.
func (s MarketStore) CountByStatus(context.Context) (map[domain.MarketStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.MarketStatus]int64)
	for _, m := range s.markets {
		out[m.Status]++
	}
	return out, nil
}

func (s *Store) filterMarkets(filter domain.MarketFilter) []domain.Market {
	var out []domain.Market
	for _, m := range s.markets {
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(m.Category, filter.Category) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ---------------------------------------------------------------------------
// EventStore
// ---------------------------------------------------------------------------

// VolumeSeries groups matching events into buckets of q.BucketWidth.
func (s EventStore) VolumeSeries(_ context.Context, q domain.SeriesQuery) ([]domain.VolumeBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := typeSet(q.EventTypes)
	byStart := make(map[time.Time]*domain.VolumeBucket)
	for _, e := range s.events {
		if !types[e.Type] || e.Timestamp.Before(q.Since) || e.Timestamp.After(q.Until) {
			continue
		}
		if q.MarketID != "" && !strings.EqualFold(e.MarketID, q.MarketID) {
			continue
		}
		start := domain.BucketStart(e.Timestamp, q.BucketWidth)
		b, ok := byStart[start]
		if !ok {
			b = &domain.VolumeBucket{Start: start, Volume: decimal.Zero}
			byStart[start] = b
		}
		b.Volume = b.Volume.Add(e.Cost)
		b.TradeCount++
	}

	out := make([]domain.VolumeBucket, 0, len(byStart))
	for _, b := range byStart {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// VolumeTotal sums matching events.
func (s EventStore) VolumeTotal(_ context.Context, q domain.TotalQuery) (domain.VolumeTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := typeSet(q.EventTypes)
	total := domain.VolumeTotal{Volume: decimal.Zero}
	for _, e := range s.events {
		if !types[e.Type] {
			continue
		}
		if q.Since != nil && e.Timestamp.Before(*q.Since) {
			continue
		}
		total.Volume = total.Volume.Add(e.Cost)
		total.Count++
	}
	return total, nil
}

// MarketActivity returns every active market with its trade and comment
// activity inside [since, until].
func (s EventStore) MarketActivity(_ context.Context, since, until time.Time) ([]domain.MarketActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make(map[string]*domain.MarketActivity)
	for _, m := range s.markets {
		if m.Status != domain.MarketStatusActive {
			continue
		}
		rows[strings.ToLower(m.ID)] = &domain.MarketActivity{
			MarketID: m.ID,
			Question: m.Question,
			Category: m.Category,
			Volume:   decimal.Zero,
		}
	}

	trades := typeSet(domain.TradeEventTypes)
	for _, e := range s.events {
		row, ok := rows[strings.ToLower(e.MarketID)]
		if !ok || !trades[e.Type] || e.Timestamp.Before(since) || e.Timestamp.After(until) {
			continue
		}
		row.Volume = row.Volume.Add(e.Cost)
		row.TradeCount++
	}
	for id, c := range s.comments {
		row, ok := rows[strings.ToLower(c.MarketID)]
		if !ok || s.deleted[id] || c.CreatedAt.Before(since) || c.CreatedAt.After(until) {
			continue
		}
		row.CommentCount++
	}

	out := make([]domain.MarketActivity, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out, nil
}

// CountTraders returns the number of distinct trading wallets.
func (s EventStore) CountTraders(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.firstTrades())), nil
}

// CountNewTraders returns wallets whose first trade is at or after since.
func (s EventStore) CountNewTraders(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, first := range s.firstTrades() {
		if !first.Before(since) {
			n++
		}
	}
	return n, nil
}

// ListBefore returns up to limit events strictly older than before with an
// id above afterID, in id order.
func (s EventStore) ListBefore(_ context.Context, before time.Time, afterID int64, limit int) ([]domain.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.MarketEvent
	for _, e := range s.events {
		if e.ID > afterID && e.Timestamp.Before(before) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) firstTrades() map[string]time.Time {
	trades := typeSet(domain.TradeEventTypes)
	first := make(map[string]time.Time)
	for _, e := range s.events {
		if !trades[e.Type] || e.Trader == "" {
			continue
		}
		addr := strings.ToLower(e.Trader)
		if t, ok := first[addr]; !ok || e.Timestamp.Before(t) {
			first[addr] = e.Timestamp
		}
	}
	return first
}

func typeSet(types []domain.EventType) map[domain.EventType]bool {
	set := make(map[domain.EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}
