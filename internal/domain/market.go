package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusResolved MarketStatus = "resolved"
	MarketStatusInvalid  MarketStatus = "invalid"
	MarketStatusPaused   MarketStatus = "paused"
)

// MarketStatuses lists every recognised status in display order.
var MarketStatuses = []MarketStatus{
	MarketStatusActive,
	MarketStatusResolved,
	MarketStatusInvalid,
	MarketStatusPaused,
}

// Outcome is one tradable answer of a market.
type Outcome struct {
	ID     int             `json:"id"`
	Name   string          `json:"name"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
}

// Market is a prediction market as indexed from chain.
type Market struct {
	ID             string          `json:"id"`
	Question       string          `json:"question"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Status         MarketStatus    `json:"status"`
	Outcomes       []Outcome       `json:"outcomes"`
	TotalVolume    decimal.Decimal `json:"totalVolume"`
	TotalLiquidity decimal.Decimal `json:"totalLiquidity"`
	ResolutionTime *time.Time      `json:"resolutionTime"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// OutcomeName returns the name of the outcome at idx, or "" when unknown.
func (m Market) OutcomeName(idx int) string {
	for _, o := range m.Outcomes {
		if o.ID == idx {
			return o.Name
		}
	}
	return ""
}

// MarketFilter narrows market listings.
type MarketFilter struct {
	Status   MarketStatus
	Category string
}

// OutcomePrice is the current price of one outcome.
type OutcomePrice struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// MarketPrices is a point-in-time view of a market's outcome prices.
type MarketPrices struct {
	MarketID  string         `json:"marketId"`
	Outcomes  []OutcomePrice `json:"outcomes"`
	Timestamp time.Time      `json:"timestamp"`
}

// Forecast is the AI service's view of a market.
type Forecast struct {
	MarketID     string            `json:"marketId"`
	Outcomes     []OutcomeForecast `json:"forecast"`
	LastUpdated  time.Time         `json:"lastUpdated"`
	ModelVersion string            `json:"modelVersion"`
}

// OutcomeForecast is the predicted probability of one outcome.
type OutcomeForecast struct {
	Outcome     string  `json:"outcome"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}
