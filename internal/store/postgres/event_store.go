package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pulsedelta/backend/internal/domain"
)

// EventStore implements domain.EventStore over the market_events table.
type EventStore struct {
	pool *pgxpool.Pool
}

var _ domain.EventStore = (*EventStore)(nil)

// NewEventStore creates an EventStore backed by pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// VolumeSeries returns the non-empty buckets of q in ascending order.
func (s *EventStore) VolumeSeries(ctx context.Context, q domain.SeriesQuery) ([]domain.VolumeBucket, error) {
	query, args := volumeSeriesQuery(q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dataErr("volume series", err)
	}
	buckets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.VolumeBucket, error) {
		var (
			b   domain.VolumeBucket
			vol string
		)
		if err := row.Scan(&b.Start, &vol, &b.TradeCount); err != nil {
			return b, err
		}
		b.Start = b.Start.UTC()
		v, err := decimal.NewFromString(vol)
		b.Volume = v
		return b, err
	})
	if err != nil {
		return nil, dataErr("scan volume series", err)
	}
	return buckets, nil
}

// VolumeTotal sums the events selected by q.
func (s *EventStore) VolumeTotal(ctx context.Context, q domain.TotalQuery) (domain.VolumeTotal, error) {
	query, args := volumeTotalQuery(q)
	var (
		total domain.VolumeTotal
		vol   string
	)
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&vol, &total.Count); err != nil {
		return domain.VolumeTotal{}, dataErr("volume total", err)
	}
	v, err := decimal.NewFromString(vol)
	if err != nil {
		return domain.VolumeTotal{}, dataErr("parse volume total", err)
	}
	total.Volume = v
	return total, nil
}

// MarketActivity returns one row per active market for [since, until].
func (s *EventStore) MarketActivity(ctx context.Context, since, until time.Time) ([]domain.MarketActivity, error) {
	query, args := marketActivityQuery(domain.TradeEventTypes, since, until)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dataErr("market activity", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.MarketActivity, error) {
		var (
			a   domain.MarketActivity
			vol string
		)
		if err := row.Scan(&a.MarketID, &a.Question, &a.Category, &vol, &a.TradeCount, &a.CommentCount); err != nil {
			return a, err
		}
		v, err := decimal.NewFromString(vol)
		a.Volume = v
		return a, err
	})
	if err != nil {
		return nil, dataErr("scan market activity", err)
	}
	return out, nil
}

// CountTraders returns the number of distinct trading wallets.
func (s *EventStore) CountTraders(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, countTradersQuery, eventTypeArg(domain.TradeEventTypes)).Scan(&n)
	if err != nil {
		return 0, dataErr("count traders", err)
	}
	return n, nil
}

// CountNewTraders returns wallets whose first trade is at or after since.
func (s *EventStore) CountNewTraders(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, countNewTradersQuery, eventTypeArg(domain.TradeEventTypes), since).Scan(&n)
	if err != nil {
		return 0, dataErr("count new traders", err)
	}
	return n, nil
}

// ListBefore pages through events older than before in id order.
func (s *EventStore) ListBefore(ctx context.Context, before time.Time, afterID int64, limit int) ([]domain.MarketEvent, error) {
	rows, err := s.pool.Query(ctx, listBeforeQuery, before, afterID, limit)
	if err != nil {
		return nil, dataErr(fmt.Sprintf("list events before %s", before.Format(time.RFC3339)), err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, dataErr("scan events", err)
	}
	return events, nil
}

func scanEvent(row pgx.CollectableRow) (domain.MarketEvent, error) {
	var (
		e            domain.MarketEvent
		typ          string
		shares, cost string
	)
	err := row.Scan(
		&e.ID, &typ, &e.MarketID, &e.Trader, &e.OutcomeIndex,
		&shares, &cost, &e.TxHash, &e.LogIndex, &e.BlockNumber, &e.Timestamp,
	)
	if err != nil {
		return e, err
	}
	e.Type = domain.EventType(typ)
	e.Timestamp = e.Timestamp.UTC()
	if e.Shares, err = decimal.NewFromString(shares); err != nil {
		return e, err
	}
	e.Cost, err = decimal.NewFromString(cost)
	return e, err
}
