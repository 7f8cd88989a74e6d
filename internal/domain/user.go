package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserProfile summarises a wallet's activity on the platform.
type UserProfile struct {
	Address         string          `json:"address"`
	TotalVolume     decimal.Decimal `json:"totalVolume"`
	TradeCount      int64           `json:"tradeCount"`
	MarketsTraded   int64           `json:"marketsTraded"`
	ActivePositions int64           `json:"activePositions"`
	CommentCount    int64           `json:"commentCount"`
	JoinedAt        *time.Time      `json:"joinedAt"`
}

// Position is a wallet's net holding in one market outcome.
type Position struct {
	MarketID       string          `json:"marketId"`
	MarketQuestion string          `json:"marketQuestion"`
	MarketStatus   MarketStatus    `json:"marketStatus"`
	OutcomeIndex   int             `json:"outcomeIndex"`
	Outcome        string          `json:"outcome"`
	Shares         decimal.Decimal `json:"shares"`
	CostBasis      decimal.Decimal `json:"costBasis"`
	Price          decimal.Decimal `json:"price"`
	CurrentValue   decimal.Decimal `json:"currentValue"`
	PnL            decimal.Decimal `json:"pnl"`
}

// Revalue fills CurrentValue and PnL from Shares, CostBasis and Price.
func (p *Position) Revalue() {
	p.CurrentValue = p.Shares.Mul(p.Price)
	p.PnL = p.CurrentValue.Sub(p.CostBasis)
}

// TradeRecord is one buy or sell in a wallet's history.
type TradeRecord struct {
	ID             int64           `json:"id"`
	Type           string          `json:"type"`
	MarketID       string          `json:"marketId"`
	MarketQuestion string          `json:"marketQuestion"`
	Outcome        string          `json:"outcome"`
	Shares         decimal.Decimal `json:"shares"`
	Cost           decimal.Decimal `json:"cost"`
	TxHash         string          `json:"txHash"`
	Timestamp      time.Time       `json:"timestamp"`
}

// TradeSide maps a trade event type to the "buy"/"sell" label.
func TradeSide(t EventType) string {
	if t == EventSharesSold {
		return "sell"
	}
	return "buy"
}

// PlatformStats are the platform-wide headline numbers.
type PlatformStats struct {
	TotalMarkets  int64           `json:"totalMarkets"`
	ActiveMarkets int64           `json:"activeMarkets"`
	TotalVolume   decimal.Decimal `json:"totalVolume"`
	TotalUsers    int64           `json:"totalUsers"`
	TotalTrades   int64           `json:"totalTrades"`
	Last24h       WindowStats     `json:"last24h"`
}

// WindowStats are the headline numbers for a recent window.
type WindowStats struct {
	Volume   decimal.Decimal `json:"volume"`
	Trades   int64           `json:"trades"`
	NewUsers int64           `json:"newUsers"`
}
