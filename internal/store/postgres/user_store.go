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

// UserStore implements domain.UserStore by deriving wallet views from
// trade events and comments.
type UserStore struct {
	pool *pgxpool.Pool
}

var _ domain.UserStore = (*UserStore)(nil)

// NewUserStore creates a UserStore backed by pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const profileTradesQuery = `
	SELECT COALESCE(SUM(cost), 0)::text, COUNT(*), COUNT(DISTINCT market_id), MIN(timestamp)
	FROM market_events
	WHERE event_type = ANY($2) AND lower(trader) = lower($1)`

const profileCommentsQuery = `
	SELECT COUNT(*), MIN(created_at)
	FROM comments
	WHERE lower(author) = lower($1) AND deleted_at IS NULL`

// positionsQuery nets buys against sells per market outcome and keeps the
// outcomes still held.
const positionsQuery = `
	SELECT e.market_id, m.question, m.status, e.outcome_index, COALESCE(o.name, ''),
	       SUM(CASE WHEN e.event_type = 'SharesSold' THEN -e.shares ELSE e.shares END)::text,
	       SUM(CASE WHEN e.event_type = 'SharesSold' THEN -e.cost ELSE e.cost END)::text,
	       COALESCE(o.price, 0)::text
	FROM market_events e
	JOIN markets m ON m.id = e.market_id
	LEFT JOIN market_outcomes o ON o.market_id = e.market_id AND o.outcome_index = e.outcome_index
	WHERE e.event_type = ANY($2) AND lower(e.trader) = lower($1)
	GROUP BY e.market_id, m.question, m.status, e.outcome_index, o.name, o.price
	HAVING SUM(CASE WHEN e.event_type = 'SharesSold' THEN -e.shares ELSE e.shares END) > 0
	ORDER BY e.market_id, e.outcome_index`

const historyQuery = `
	SELECT e.id, e.event_type, e.market_id, COALESCE(m.question, ''), COALESCE(o.name, ''),
	       e.shares::text, e.cost::text, e.tx_hash, e.timestamp
	FROM market_events e
	LEFT JOIN markets m ON m.id = e.market_id
	LEFT JOIN market_outcomes o ON o.market_id = e.market_id AND o.outcome_index = e.outcome_index
	WHERE e.event_type = ANY($2) AND lower(e.trader) = lower($1)
	ORDER BY e.timestamp DESC, e.id DESC
	LIMIT $3 OFFSET $4`

// Profile summarises a wallet. It returns domain.ErrNotFound when the wallet
// has neither traded nor commented.
func (s *UserStore) Profile(ctx context.Context, address string) (domain.UserProfile, error) {
	p := domain.UserProfile{Address: address}
	var (
		volume      string
		firstTrade  *time.Time
		firstRemark *time.Time
	)
	err := s.pool.QueryRow(ctx, profileTradesQuery, address, eventTypeArg(domain.TradeEventTypes)).
		Scan(&volume, &p.TradeCount, &p.MarketsTraded, &firstTrade)
	if err != nil {
		return domain.UserProfile{}, dataErr("profile trades", err)
	}
	if p.TotalVolume, err = decimal.NewFromString(volume); err != nil {
		return domain.UserProfile{}, dataErr("parse profile volume", err)
	}
	if err := s.pool.QueryRow(ctx, profileCommentsQuery, address).Scan(&p.CommentCount, &firstRemark); err != nil {
		return domain.UserProfile{}, dataErr("profile comments", err)
	}
	if p.TradeCount == 0 && p.CommentCount == 0 {
		return domain.UserProfile{}, fmt.Errorf("postgres: profile %s: %w", address, domain.ErrNotFound)
	}
	p.JoinedAt = earliest(firstTrade, firstRemark)

	positions, err := s.Positions(ctx, address)
	if err != nil {
		return domain.UserProfile{}, err
	}
	for _, pos := range positions {
		if pos.MarketStatus == domain.MarketStatusActive {
			p.ActivePositions++
		}
	}
	return p, nil
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return utcPtr(b)
	case b == nil:
		return utcPtr(a)
	case b.Before(*a):
		return utcPtr(b)
	default:
		return utcPtr(a)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Positions returns the wallet's open positions valued at current outcome
// prices.
func (s *UserStore) Positions(ctx context.Context, address string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, positionsQuery, address, eventTypeArg(domain.TradeEventTypes))
	if err != nil {
		return nil, dataErr("positions", err)
	}
	positions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Position, error) {
		var (
			p                   domain.Position
			status              string
			shares, cost, price string
		)
		if err := row.Scan(&p.MarketID, &p.MarketQuestion, &status, &p.OutcomeIndex, &p.Outcome,
			&shares, &cost, &price); err != nil {
			return p, err
		}
		p.MarketStatus = domain.MarketStatus(status)
		var err error
		if p.Shares, err = decimal.NewFromString(shares); err != nil {
			return p, err
		}
		if p.CostBasis, err = decimal.NewFromString(cost); err != nil {
			return p, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return p, err
		}
		p.Revalue()
		return p, nil
	})
	if err != nil {
		return nil, dataErr("scan positions", err)
	}
	return positions, nil
}

// History returns one page of the wallet's trades, newest first.
func (s *UserStore) History(ctx context.Context, address string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, historyQuery,
		address, eventTypeArg(domain.TradeEventTypes), opts.Limit, opts.Offset)
	if err != nil {
		return nil, dataErr("trade history", err)
	}
	trades, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TradeRecord, error) {
		var (
			t            domain.TradeRecord
			typ          string
			shares, cost string
		)
		if err := row.Scan(&t.ID, &typ, &t.MarketID, &t.MarketQuestion, &t.Outcome,
			&shares, &cost, &t.TxHash, &t.Timestamp); err != nil {
			return t, err
		}
		t.Type = domain.TradeSide(domain.EventType(typ))
		t.Timestamp = t.Timestamp.UTC()
		var err error
		if t.Shares, err = decimal.NewFromString(shares); err != nil {
			return t, err
		}
		t.Cost, err = decimal.NewFromString(cost)
		return t, err
	})
	if err != nil {
		return nil, dataErr("scan trade history", err)
	}
	return trades, nil
}

// HistoryCount returns the number of trades by the wallet.
func (s *UserStore) HistoryCount(ctx context.Context, address string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM market_events WHERE event_type = ANY($2) AND lower(trader) = lower($1)`,
		address, eventTypeArg(domain.TradeEventTypes)).Scan(&n)
	if err != nil {
		return 0, dataErr("trade history count", err)
	}
	return n, nil
}
