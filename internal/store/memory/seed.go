package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulsedelta/backend/internal/domain"
)

// Seed fills s with a small, deterministic set of markets, trades and
// comments anchored at now. It is used by the demo mode.
func Seed(s *Store, now time.Time) {
	now = now.UTC()
	markets := []domain.Market{
		demoMarket(1, "Will Bitcoin reach $100k by the end of the year?", "Cryptocurrency", domain.MarketStatusActive, "0.65", "0.35", now.Add(-30*24*time.Hour)),
		demoMarket(2, "Will the home team win the championship?", "Sports", domain.MarketStatusActive, "0.42", "0.58", now.Add(-14*24*time.Hour)),
		demoMarket(3, "Will the central bank cut rates this quarter?", "Economics", domain.MarketStatusActive, "0.30", "0.70", now.Add(-7*24*time.Hour)),
		demoMarket(4, "Did the network upgrade ship on schedule?", "Technology", domain.MarketStatusResolved, "1", "0", now.Add(-60*24*time.Hour)),
	}
	for _, m := range markets {
		s.AddMarket(m)
	}

	traders := []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"0x3333333333333333333333333333333333333333",
	}

	var events []domain.MarketEvent
	for i := 0; i < 48; i++ {
		m := markets[i%3]
		typ := domain.EventSharesPurchased
		if i%5 == 4 {
			typ = domain.EventSharesSold
		}
		events = append(events, domain.MarketEvent{
			Type:         typ,
			MarketID:     m.ID,
			Trader:       traders[i%len(traders)],
			OutcomeIndex: i % 2,
			Shares:       decimal.NewFromInt(int64(100 + 10*i)),
			Cost:         decimal.NewFromInt(int64(50 + 5*i)),
			TxHash:       fmt.Sprintf("0x%064x", i+1),
			LogIndex:     0,
			BlockNumber:  uint64(1_000_000 + i),
			Timestamp:    now.Add(-time.Duration(i) * 90 * time.Minute),
		})
	}
	s.AddEvents(events...)

	s.mu.RLock()
	clock := s.now
	s.mu.RUnlock()
	defer s.SetClock(clock)

	comments := s.Comments()
	texts := []string{
		"I think this will definitely happen this year.",
		"Volume is picking up, interesting.",
		"Not convinced, the odds look too high.",
	}
	for i, text := range texts {
		at := now.Add(-time.Duration(len(texts)-i) * time.Hour)
		s.SetClock(func() time.Time { return at })
		_, _ = comments.Create(context.Background(), domain.NewComment{
			MarketID: markets[i].ID,
			Author:   traders[i],
			Content:  text,
		})
	}
}

func demoMarket(n int, question, category string, status domain.MarketStatus, yes, no string, created time.Time) domain.Market {
	return domain.Market{
		ID:          fmt.Sprintf("0x%040x", n),
		Question:    question,
		Description: question + " Resolves from the designated oracle report.",
		Category:    category,
		Status:      status,
		Outcomes: []domain.Outcome{
			{ID: 0, Name: "Yes", Shares: decimal.NewFromInt(600_000), Price: decimal.RequireFromString(yes)},
			{ID: 1, Name: "No", Shares: decimal.NewFromInt(400_000), Price: decimal.RequireFromString(no)},
		},
		TotalVolume:    decimal.NewFromInt(1_000_000),
		TotalLiquidity: decimal.NewFromInt(500_000),
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}
