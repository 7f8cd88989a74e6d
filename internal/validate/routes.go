package validate

import (
	"fmt"
	"net/url"

	"github.com/pulsedelta/backend/internal/analytics"
	"github.com/pulsedelta/backend/internal/domain"
)

// Messages shared by more than one route.
const (
	msgMarketAddress = "Invalid market ID format (must be a valid Ethereum address)"
	msgMarketID      = "Invalid market ID format"
	msgUserAddress   = "Invalid user address format"
	msgWallet        = "Invalid wallet address format"
	msgCommentID     = "Invalid comment ID"
	msgParentID      = "Parent comment ID must be a positive integer"
	msgContentEmpty  = "Comment content is required"
	msgStatus        = "Invalid status value"
	msgCategory      = "Category must be a string with max 50 characters"
	msgHistory       = "Invalid interval value"
	msgInterval      = "Invalid interval. Must be one of: 24h, 7d, 30d, 1y"
	msgGroupBy       = "Invalid groupBy. Must be one of: hour, day, week, month"
	msgTimeframe     = "Invalid timeframe. Must be one of: 24h, 7d, 30d"
)

// Limits and defaults of paged routes.
const (
	DefaultPageLimit    = 20
	DefaultCommentLimit = 50
	MaxPageLimit        = 100
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
	DefaultTrendLimit   = 10
	MaxCategoryLength   = 50
)

func limitMessage(hi int) string {
	return fmt.Sprintf("Limit must be between 1 and %d", hi)
}

// Page is a validated page request.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (c *Collector) page(q url.Values, def int) Page {
	return Page{
		Page:  c.Page(q.Get("page")),
		Limit: c.IntRange("limit", q.Get("limit"), def, 1, MaxPageLimit, limitMessage(MaxPageLimit)),
	}
}

// MarketListParams is a validated market listing request.
type MarketListParams struct {
	Page
	Filter domain.MarketFilter
}

var statusTokens = func() []string {
	out := make([]string, len(domain.MarketStatuses))
	for i, s := range domain.MarketStatuses {
		out[i] = string(s)
	}
	return out
}()

// MarketList validates GET /markets query parameters.
func MarketList(q url.Values) (MarketListParams, error) {
	var c Collector
	p := MarketListParams{Page: c.page(q, DefaultPageLimit)}
	p.Filter.Status = domain.MarketStatus(c.OneOf("status", q.Get("status"), "", statusTokens, msgStatus))
	p.Filter.Category = c.MaxLength("category", q.Get("category"), MaxCategoryLength, msgCategory)
	return p, c.Err()
}

// MarketID validates a market address taken from the path.
func MarketID(raw string) (string, error) {
	var c Collector
	id := c.Address("marketId", raw, msgMarketAddress)
	return id, c.Err()
}

// HistoryParams is a validated per-market history request.
type HistoryParams struct {
	MarketID string
	Interval string
	Limit    int
}

// MarketHistory validates the market id and the interval and limit query
// parameters. Unless strict, an unknown interval is passed through for the
// window resolver to replace with its default.
func MarketHistory(marketID string, q url.Values, strict bool) (HistoryParams, error) {
	var c Collector
	p := HistoryParams{
		MarketID: c.Address("marketId", marketID, msgMarketAddress),
		Interval: c.token("interval", q.Get("interval"), analytics.DefaultHistoryInterval,
			analytics.HistoryIntervalTokens, msgHistory, strict),
		Limit: c.IntRange("limit", q.Get("limit"), DefaultHistoryLimit, 1, MaxHistoryLimit,
			limitMessage(MaxHistoryLimit)),
	}
	return p, c.Err()
}

// UserAddress validates a wallet address taken from the path.
func UserAddress(raw string) (string, error) {
	var c Collector
	addr := c.Address("address", raw, msgWallet)
	return addr, c.Err()
}

// UserHistoryParams is a validated trade history request.
type UserHistoryParams struct {
	Page
	Address string
}

// UserHistory validates the wallet address and paging of a trade history
// listing.
func UserHistory(address string, q url.Values) (UserHistoryParams, error) {
	var c Collector
	p := UserHistoryParams{Address: c.Address("address", address, msgWallet)}
	p.Page = c.page(q, DefaultPageLimit)
	return p, c.Err()
}

// CommentListParams is a validated comment listing request.
type CommentListParams struct {
	Page
	MarketID string
}

// CommentList validates the market id and paging of a comment listing.
func CommentList(marketID string, q url.Values) (CommentListParams, error) {
	var c Collector
	p := CommentListParams{MarketID: c.Address("marketId", marketID, msgMarketID)}
	p.Page = c.page(q, DefaultCommentLimit)
	return p, c.Err()
}

// ContentBounds limits the trimmed length of a comment.
type ContentBounds struct {
	Min int
	Max int
}

// CreateComment validates a decoded comment body.
func CreateComment(body map[string]any, bounds ContentBounds) (domain.NewComment, error) {
	var c Collector
	nc := domain.NewComment{
		MarketID: c.Address("marketId", body["marketId"], msgMarketID),
		Author:   c.Address("userAddress", body["userAddress"], msgUserAddress),
		Content: c.Text("content", body["content"], bounds.Min, bounds.Max, msgContentEmpty,
			fmt.Sprintf("Comment must be between %d and %d characters", bounds.Min, bounds.Max)),
	}
	if raw, ok := body["parentCommentId"]; ok && raw != nil {
		if id := c.PositiveID("parentCommentId", raw, msgParentID); id > 0 {
			nc.ParentID = &id
		}
	}
	return nc, c.Err()
}

// DeleteCommentParams is a validated comment deletion.
type DeleteCommentParams struct {
	CommentID int64
	Author    string
}

// DeleteComment validates the comment id from the path and the caller's
// address from the body.
func DeleteComment(commentID string, body map[string]any) (DeleteCommentParams, error) {
	var c Collector
	p := DeleteCommentParams{
		CommentID: c.PositiveID("commentId", commentID, msgCommentID),
		Author:    c.Address("userAddress", body["userAddress"], msgUserAddress),
	}
	return p, c.Err()
}

// VolumeParams is a validated platform volume request.
type VolumeParams struct {
	Interval string
	GroupBy  string
}

// VolumeQuery validates interval and groupBy. Unless strict, unknown tokens
// are passed through for the window resolver to replace.
func VolumeQuery(q url.Values, strict bool) (VolumeParams, error) {
	var c Collector
	p := VolumeParams{
		Interval: c.token("interval", q.Get("interval"), analytics.DefaultInterval,
			analytics.IntervalTokens, msgInterval, strict),
		GroupBy: c.token("groupBy", q.Get("groupBy"), analytics.DefaultGroupBy,
			analytics.GroupByTokens, msgGroupBy, strict),
	}
	return p, c.Err()
}

// TrendingParams is a validated trending request.
type TrendingParams struct {
	Timeframe string
	Limit     int
}

// TrendingQuery validates limit and timeframe. The limit is always checked.
func TrendingQuery(q url.Values, strict bool) (TrendingParams, error) {
	var c Collector
	p := TrendingParams{
		Limit: c.IntRange("limit", q.Get("limit"), DefaultTrendLimit, 1, analytics.MaxTrendingLimit,
			limitMessage(analytics.MaxTrendingLimit)),
		Timeframe: c.token("timeframe", q.Get("timeframe"), analytics.DefaultTimeframe,
			analytics.TimeframeTokens, msgTimeframe, strict),
	}
	return p, c.Err()
}

// token checks raw against allowed only in strict mode. Empty input yields
// def either way.
func (c *Collector) token(field, raw, def string, allowed []string, message string, strict bool) string {
	if !strict {
		if raw == "" {
			return def
		}
		return raw
	}
	return c.OneOf(field, raw, def, allowed, message)
}
