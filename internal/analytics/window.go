// Package analytics derives volume series, totals and trending rankings from
// indexed market events.
package analytics

import (
	"time"

	"github.com/pulsedelta/backend/internal/domain"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

// Default tokens used when a caller omits or misspells one.
const (
	DefaultInterval  = "24h"
	DefaultGroupBy   = "hour"
	DefaultTimeframe = "24h"
)

var intervals = map[string]time.Duration{
	"24h": day,
	"7d":  week,
	"30d": month,
	"1y":  year,
}

var groupings = map[string]time.Duration{
	"hour":  time.Hour,
	"day":   day,
	"week":  week,
	"month": month,
}

var timeframes = map[string]time.Duration{
	"24h": day,
	"7d":  week,
	"30d": month,
}

// IntervalTokens, GroupByTokens and TimeframeTokens list the recognised
// tokens in ascending order of duration.
var (
	IntervalTokens  = []string{"24h", "7d", "30d", "1y"}
	GroupByTokens   = []string{"hour", "day", "week", "month"}
	TimeframeTokens = []string{"24h", "7d", "30d"}
)

// TimeWindow is a resolved lookback range with its bucket width. Lookback is
// never shorter than BucketWidth.
type TimeWindow struct {
	Interval    string
	GroupBy     string
	Lookback    time.Duration
	BucketWidth time.Duration
}

// Range returns the inclusive [since, until] bounds of w ending at now.
func (w TimeWindow) Range(now time.Time) (since, until time.Time) {
	return now.Add(-w.Lookback), now
}

// AlignedRange returns bounds covering exactly Lookback/BucketWidth buckets:
// the bucket holding now and the whole buckets before it.
func (w TimeWindow) AlignedRange(now time.Time) (since, until time.Time) {
	start := domain.BucketStart(now, w.BucketWidth)
	return start.Add(w.BucketWidth - w.Lookback), now
}

// ResolveWindow maps interval and groupBy tokens to durations. Unknown tokens
// fall back to 24h and hour; it never fails. A bucket wider than the lookback
// is narrowed to the lookback.
func ResolveWindow(interval, groupBy string) TimeWindow {
	w := TimeWindow{Interval: interval, GroupBy: groupBy}

	lookback, ok := intervals[interval]
	if !ok {
		w.Interval = DefaultInterval
		lookback = intervals[DefaultInterval]
	}
	width, ok := groupings[groupBy]
	if !ok {
		w.GroupBy = DefaultGroupBy
		width = groupings[DefaultGroupBy]
	}
	if width > lookback {
		width = lookback
	}

	w.Lookback = lookback
	w.BucketWidth = width
	return w
}

// ResolveTimeframe maps a trending timeframe token to a window whose single
// bucket spans the whole lookback. Unknown tokens fall back to 24h.
func ResolveTimeframe(timeframe string) TimeWindow {
	lookback, ok := timeframes[timeframe]
	if !ok {
		timeframe = DefaultTimeframe
		lookback = timeframes[DefaultTimeframe]
	}
	return TimeWindow{
		Interval:    timeframe,
		Lookback:    lookback,
		BucketWidth: lookback,
	}
}

// KnownInterval reports whether token is a recognised interval.
func KnownInterval(token string) bool {
	_, ok := intervals[token]
	return ok
}

// KnownGroupBy reports whether token is a recognised grouping.
func KnownGroupBy(token string) bool {
	_, ok := groupings[token]
	return ok
}

// KnownTimeframe reports whether token is a recognised trending timeframe.
func KnownTimeframe(token string) bool {
	_, ok := timeframes[token]
	return ok
}

// historyIntervals are the bucket widths accepted for per-market history.
var historyIntervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  day,
}

// HistoryIntervalTokens lists the per-market history bucket widths.
var HistoryIntervalTokens = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// DefaultHistoryInterval is the per-market history bucket width token.
const DefaultHistoryInterval = "1h"

// ResolveHistory returns a window of points buckets of the given width.
// Callers take its AlignedRange so the newest bucket holds now. Unknown
// widths fall back to 1h and points below one become one.
func ResolveHistory(interval string, points int) TimeWindow {
	width, ok := historyIntervals[interval]
	if !ok {
		interval = DefaultHistoryInterval
		width = historyIntervals[DefaultHistoryInterval]
	}
	if points < 1 {
		points = 1
	}
	return TimeWindow{
		Interval:    interval,
		GroupBy:     interval,
		Lookback:    time.Duration(points) * width,
		BucketWidth: width,
	}
}
