package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names an on-chain market event.
type EventType string

const (
	EventSharesPurchased  EventType = "SharesPurchased"
	EventSharesSold       EventType = "SharesSold"
	EventMarketCreated    EventType = "MarketCreated"
	EventMarketResolved   EventType = "MarketResolved"
	EventLiquidityAdded   EventType = "LiquidityAdded"
	EventLiquidityRemoved EventType = "LiquidityRemoved"
)

// TradeEventTypes are the event types that count towards volume.
var TradeEventTypes = []EventType{EventSharesPurchased, EventSharesSold}

// MarketEvent is one indexed contract event. Cost is denominated in the
// collateral token.
type MarketEvent struct {
	ID           int64           `json:"id"`
	Type         EventType       `json:"eventType"`
	MarketID     string          `json:"marketId"`
	Trader       string          `json:"trader"`
	OutcomeIndex int             `json:"outcomeIndex"`
	Shares       decimal.Decimal `json:"shares"`
	Cost         decimal.Decimal `json:"cost"`
	TxHash       string          `json:"txHash"`
	LogIndex     int             `json:"logIndex"`
	BlockNumber  uint64          `json:"blockNumber"`
	Timestamp    time.Time       `json:"timestamp"`
}

// SeriesQuery selects events for a bucketed volume series. Since and Until
// are both inclusive.
type SeriesQuery struct {
	EventTypes  []EventType
	MarketID    string
	Since       time.Time
	Until       time.Time
	BucketWidth time.Duration
}

// TotalQuery selects events for a single volume total. A nil Since means
// all time.
type TotalQuery struct {
	EventTypes []EventType
	Since      *time.Time
}

// VolumeBucket is the aggregate of one time bucket.
type VolumeBucket struct {
	Start      time.Time       `json:"timestamp"`
	Volume     decimal.Decimal `json:"volume"`
	TradeCount int64           `json:"tradeCount"`
}

// VolumeTotal is an aggregate over a whole range.
type VolumeTotal struct {
	Volume decimal.Decimal `json:"volume"`
	Count  int64           `json:"count"`
}

// MarketActivity is the per-market input to trending ranking.
type MarketActivity struct {
	MarketID     string          `json:"marketId"`
	Question     string          `json:"question"`
	Category     string          `json:"category"`
	Volume       decimal.Decimal `json:"volume"`
	TradeCount   int64           `json:"tradeCount"`
	CommentCount int64           `json:"commentCount"`
}

// BucketOrigin anchors bucket boundaries. Buckets are aligned to multiples
// of their width from this instant.
var BucketOrigin = time.Unix(0, 0).UTC()

// BucketStart returns the start of the bucket of width containing t.
func BucketStart(t time.Time, width time.Duration) time.Time {
	if width <= 0 {
		return t.UTC()
	}
	offset := t.Sub(BucketOrigin)
	n := offset / width
	if offset < 0 && offset%width != 0 {
		n--
	}
	return BucketOrigin.Add(n * width)
}
