package analytics

import (
	"sort"

	"github.com/pulsedelta/backend/internal/domain"
)

// MaxTrendingLimit is the largest accepted trending list size.
const MaxTrendingLimit = 50

// RankTrending orders entries by volume, trade count and comment count, all
// descending, breaking remaining ties by market id ascending, and returns at
// most limit entries. The input slice is not modified.
func RankTrending(entries []domain.MarketActivity, limit int) []domain.MarketActivity {
	ranked := make([]domain.MarketActivity, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		return trendingLess(ranked[i], ranked[j])
	})

	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// trendingLess reports whether a ranks ahead of b.
func trendingLess(a, b domain.MarketActivity) bool {
	if c := a.Volume.Cmp(b.Volume); c != 0 {
		return c > 0
	}
	if a.TradeCount != b.TradeCount {
		return a.TradeCount > b.TradeCount
	}
	if a.CommentCount != b.CommentCount {
		return a.CommentCount > b.CommentCount
	}
	return a.MarketID < b.MarketID
}
