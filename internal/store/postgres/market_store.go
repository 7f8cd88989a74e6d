package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pulsedelta/backend/internal/domain"
)

// MarketStore implements domain.MarketStore over markets and
// market_outcomes.
type MarketStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a MarketStore backed by pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, question, description, category, status,
	total_volume::text, total_liquidity::text, resolution_time, created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                 domain.Market
		status            string
		volume, liquidity string
	)
	err := row.Scan(
		&m.ID, &m.Question, &m.Description, &m.Category, &status,
		&volume, &liquidity, &m.ResolutionTime, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	if m.TotalVolume, err = decimal.NewFromString(volume); err != nil {
		return domain.Market{}, err
	}
	if m.TotalLiquidity, err = decimal.NewFromString(liquidity); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// marketFilterClause renders the WHERE clause for f. Placeholders are
// numbered after the args already present.
func marketFilterClause(f domain.MarketFilter, args []any) (string, []any) {
	clause := " WHERE TRUE"
	if f.Status != "" {
		args = append(args, string(f.Status))
		clause += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		clause += fmt.Sprintf(" AND lower(category) = lower($%d)", len(args))
	}
	return clause, args
}

// listMarketsQuery selects one page of markets matching f, newest first.
func listMarketsQuery(f domain.MarketFilter, opts domain.ListOpts) (string, []any) {
	where, args := marketFilterClause(f, nil)
	query := `SELECT ` + marketCols + ` FROM markets` + where + ` ORDER BY created_at DESC, id ASC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

// GetByID returns the market with the given address. Addresses compare
// case-insensitively.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE lower(id) = lower($1)`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, dataErr("get market "+id, err)
	}
	markets := []domain.Market{m}
	if err := s.attachOutcomes(ctx, markets); err != nil {
		return domain.Market{}, err
	}
	return markets[0], nil
}

// List returns one page of markets matching filter, newest first.
func (s *MarketStore) List(ctx context.Context, filter domain.MarketFilter, opts domain.ListOpts) ([]domain.Market, error) {
	query, args := listMarketsQuery(filter, opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dataErr("list markets", err)
	}
	markets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Market, error) {
		return scanMarket(row)
	})
	if err != nil {
		return nil, dataErr("scan markets", err)
	}
	if err := s.attachOutcomes(ctx, markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// attachOutcomes loads the outcomes of every market in one round trip.
func (s *MarketStore) attachOutcomes(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}
	ids := make([]string, len(markets))
	index := make(map[string]int, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
		index[m.ID] = i
		markets[i].Outcomes = []domain.Outcome{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT market_id, outcome_index, name, shares::text, price::text
		FROM market_outcomes
		WHERE market_id = ANY($1)
		ORDER BY market_id, outcome_index`, ids)
	if err != nil {
		return dataErr("list outcomes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			marketID      string
			o             domain.Outcome
			shares, price string
		)
		if err := rows.Scan(&marketID, &o.ID, &o.Name, &shares, &price); err != nil {
			return dataErr("scan outcome", err)
		}
		if o.Shares, err = decimal.NewFromString(shares); err != nil {
			return dataErr("parse outcome shares", err)
		}
		if o.Price, err = decimal.NewFromString(price); err != nil {
			return dataErr("parse outcome price", err)
		}
		i := index[marketID]
		markets[i].Outcomes = append(markets[i].Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return dataErr("list outcomes rows", err)
	}
	return nil
}

// Count returns the number of markets matching filter.
func (s *MarketStore) Count(ctx context.Context, filter domain.MarketFilter) (int64, error) {
	where, args := marketFilterClause(filter, nil)
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets"+where, args...).Scan(&n); err != nil {
		return 0, dataErr("count markets", err)
	}
	return n, nil
}

// CountByStatus returns the number of markets in each status. Statuses with
// no markets are absent.
func (s *MarketStore) CountByStatus(ctx context.Context) (map[domain.MarketStatus]int64, error) {
	rows, err := s.pool.Query(ctx, "SELECT status, COUNT(*) FROM markets GROUP BY status")
	if err != nil {
		return nil, dataErr("count markets by status", err)
	}
	defer rows.Close()

	out := make(map[domain.MarketStatus]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, dataErr("scan status count", err)
		}
		out[domain.MarketStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, dataErr("count markets by status rows", err)
	}
	return out, nil
}
