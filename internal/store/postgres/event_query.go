package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulsedelta/backend/internal/domain"
)

// bucketOrigin is the date_bin origin. It matches domain.BucketOrigin so SQL
// and in-memory buckets share boundaries.
const bucketOrigin = `TIMESTAMPTZ '1970-01-01 00:00:00+00'`

func eventTypeArg(types []domain.EventType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// volumeSeriesQuery groups events of q.EventTypes inside the inclusive
// [Since, Until] range into buckets of q.BucketWidth.
func volumeSeriesQuery(q domain.SeriesQuery) (string, []any) {
	width := q.BucketWidth
	if width < time.Second {
		width = time.Second
	}
	args := []any{
		int64(width / time.Second),
		eventTypeArg(q.EventTypes),
		q.Since,
		q.Until,
	}

	var b strings.Builder
	b.WriteString(`
		SELECT date_bin($1::bigint * INTERVAL '1 second', timestamp, ` + bucketOrigin + `) AS bucket,
		       COALESCE(SUM(cost), 0)::text AS volume,
		       COUNT(*) AS trades
		FROM market_events
		WHERE event_type = ANY($2)
		  AND timestamp >= $3
		  AND timestamp <= $4`)
	if q.MarketID != "" {
		args = append(args, q.MarketID)
		fmt.Fprintf(&b, "\n\t\t  AND market_id = $%d", len(args))
	}
	b.WriteString(`
		GROUP BY bucket
		ORDER BY bucket ASC`)
	return b.String(), args
}

// volumeTotalQuery sums events of q.EventTypes, optionally from q.Since on.
func volumeTotalQuery(q domain.TotalQuery) (string, []any) {
	args := []any{eventTypeArg(q.EventTypes)}
	query := `
		SELECT COALESCE(SUM(cost), 0)::text, COUNT(*)
		FROM market_events
		WHERE event_type = ANY($1)`
	if q.Since != nil {
		args = append(args, *q.Since)
		query += fmt.Sprintf("\n\t\t  AND timestamp >= $%d", len(args))
	}
	return query, args
}

// marketActivityQuery left-joins every active market with its trade and
// comment activity inside [since, until]; idle markets come back as zeros.
func marketActivityQuery(types []domain.EventType, since, until time.Time) (string, []any) {
	const query = `
		SELECT m.id, m.question, m.category,
		       COALESCE(e.volume, 0)::text,
		       COALESCE(e.trades, 0),
		       COALESCE(c.comments, 0)
		FROM markets m
		LEFT JOIN (
			SELECT market_id, SUM(cost) AS volume, COUNT(*) AS trades
			FROM market_events
			WHERE event_type = ANY($1)
			  AND timestamp >= $2
			  AND timestamp <= $3
			GROUP BY market_id
		) e ON e.market_id = m.id
		LEFT JOIN (
			SELECT market_id, COUNT(*) AS comments
			FROM comments
			WHERE deleted_at IS NULL
			  AND created_at >= $2
			  AND created_at <= $3
			GROUP BY market_id
		) c ON c.market_id = m.id
		WHERE m.status = 'active'
		ORDER BY m.id`
	return query, []any{eventTypeArg(types), since, until}
}

const countTradersQuery = `
	SELECT COUNT(DISTINCT lower(trader))
	FROM market_events
	WHERE event_type = ANY($1) AND trader <> ''`

const countNewTradersQuery = `
	SELECT COUNT(*) FROM (
		SELECT lower(trader)
		FROM market_events
		WHERE event_type = ANY($1) AND trader <> ''
		GROUP BY lower(trader)
		HAVING MIN(timestamp) >= $2
	) first_trades`

const eventCols = `id, event_type, market_id, trader, outcome_index,
	shares::text, cost::text, tx_hash, log_index, block_number, timestamp`

const listBeforeQuery = `SELECT ` + eventCols + `
	FROM market_events
	WHERE timestamp < $1 AND id > $2
	ORDER BY id ASC
	LIMIT $3`
