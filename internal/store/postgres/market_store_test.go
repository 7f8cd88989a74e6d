package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pulsedelta/backend/internal/domain"
)

func TestMarketFilterClause(t *testing.T) {
	tests := []struct {
		name       string
		filter     domain.MarketFilter
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "no filter",
			wantClause: " WHERE TRUE",
		},
		{
			name:       "status",
			filter:     domain.MarketFilter{Status: domain.MarketStatusActive},
			wantClause: " WHERE TRUE AND status = $1",
			wantArgs:   []any{"active"},
		},
		{
			name:       "status and category",
			filter:     domain.MarketFilter{Status: domain.MarketStatusPaused, Category: "Sports"},
			wantClause: " WHERE TRUE AND status = $1 AND lower(category) = lower($2)",
			wantArgs:   []any{"paused", "Sports"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, args := marketFilterClause(tt.filter, nil)
			assert.Equal(t, tt.wantClause, clause)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestListMarketsQuery(t *testing.T) {
	query, args := listMarketsQuery(
		domain.MarketFilter{Category: "crypto"},
		domain.ListOpts{Limit: 20, Offset: 40},
	)
	assert.Contains(t, query, "lower(category) = lower($1)")
	assert.Contains(t, query, "ORDER BY created_at DESC, id ASC LIMIT $2 OFFSET $3")
	assert.Equal(t, []any{"crypto", 20, 40}, args)

	query, args = listMarketsQuery(domain.MarketFilter{}, domain.ListOpts{Limit: 10})
	assert.Contains(t, query, "LIMIT $1")
	assert.NotContains(t, query, "OFFSET")
	assert.Equal(t, []any{10}, args)
}
