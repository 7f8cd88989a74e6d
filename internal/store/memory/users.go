package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulsedelta/backend/internal/domain"
)

type positionKey struct {
	marketID string
	outcome  int
}

// Profile summarises a wallet. It returns domain.ErrNotFound when the wallet
// has neither traded nor commented.
func (s UserStore) Profile(_ context.Context, address string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := domain.UserProfile{Address: address, TotalVolume: decimal.Zero}
	markets := make(map[string]bool)
	for _, e := range s.walletTrades(address) {
		p.TotalVolume = p.TotalVolume.Add(e.Cost)
		p.TradeCount++
		markets[e.MarketID] = true
		if p.JoinedAt == nil || e.Timestamp.Before(*p.JoinedAt) {
			ts := e.Timestamp
			p.JoinedAt = &ts
		}
	}
	p.MarketsTraded = int64(len(markets))

	for _, pos := range s.positions(address) {
		if pos.MarketStatus == domain.MarketStatusActive {
			p.ActivePositions++
		}
	}
	for id, c := range s.comments {
		if s.deleted[id] || !strings.EqualFold(c.Author, address) {
			continue
		}
		p.CommentCount++
		if p.JoinedAt == nil || c.CreatedAt.Before(*p.JoinedAt) {
			ts := c.CreatedAt
			p.JoinedAt = &ts
		}
	}

	if p.TradeCount == 0 && p.CommentCount == 0 {
		return domain.UserProfile{}, domain.ErrNotFound
	}
	return p, nil
}

// Positions returns the wallet's open positions ordered by market and
// outcome.
func (s UserStore) Positions(_ context.Context, address string) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions(address), nil
}

// History returns the wallet's trades, newest first.
func (s UserStore) History(_ context.Context, address string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.walletTrades(address)
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].Timestamp.Equal(trades[j].Timestamp) {
			return trades[i].Timestamp.After(trades[j].Timestamp)
		}
		return trades[i].ID > trades[j].ID
	})
	trades = page(trades, opts)

	out := make([]domain.TradeRecord, 0, len(trades))
	for _, e := range trades {
		m := s.markets[strings.ToLower(e.MarketID)]
		out = append(out, domain.TradeRecord{
			ID:             e.ID,
			Type:           domain.TradeSide(e.Type),
			MarketID:       e.MarketID,
			MarketQuestion: m.Question,
			Outcome:        m.OutcomeName(e.OutcomeIndex),
			Shares:         e.Shares,
			Cost:           e.Cost,
			TxHash:         e.TxHash,
			Timestamp:      e.Timestamp,
		})
	}
	return out, nil
}

// HistoryCount returns the number of trades by the wallet.
func (s UserStore) HistoryCount(_ context.Context, address string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.walletTrades(address))), nil
}

func (s *Store) walletTrades(address string) []domain.MarketEvent {
	trades := typeSet(domain.TradeEventTypes)
	var out []domain.MarketEvent
	for _, e := range s.events {
		if trades[e.Type] && strings.EqualFold(e.Trader, address) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) positions(address string) []domain.Position {
	type acc struct{ shares, cost decimal.Decimal }
	net := make(map[positionKey]*acc)
	for _, e := range s.walletTrades(address) {
		k := positionKey{e.MarketID, e.OutcomeIndex}
		a, ok := net[k]
		if !ok {
			a = &acc{shares: decimal.Zero, cost: decimal.Zero}
			net[k] = a
		}
		if e.Type == domain.EventSharesSold {
			a.shares = a.shares.Sub(e.Shares)
			a.cost = a.cost.Sub(e.Cost)
			continue
		}
		a.shares = a.shares.Add(e.Shares)
		a.cost = a.cost.Add(e.Cost)
	}

	out := make([]domain.Position, 0, len(net))
	for k, a := range net {
		if !a.shares.IsPositive() {
			continue
		}
		m := s.markets[strings.ToLower(k.marketID)]
		pos := domain.Position{
			MarketID:       k.marketID,
			MarketQuestion: m.Question,
			MarketStatus:   m.Status,
			OutcomeIndex:   k.outcome,
			Outcome:        m.OutcomeName(k.outcome),
			Shares:         a.shares,
			CostBasis:      a.cost,
			Price:          outcomePrice(m, k.outcome),
		}
		pos.Revalue()
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketID != out[j].MarketID {
			return out[i].MarketID < out[j].MarketID
		}
		return out[i].OutcomeIndex < out[j].OutcomeIndex
	})
	return out
}

func outcomePrice(m domain.Market, idx int) decimal.Decimal {
	for _, o := range m.Outcomes {
		if o.ID == idx {
			return o.Price
		}
	}
	return decimal.Zero
}

// SetClock replaces the clock used to timestamp new comments.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
