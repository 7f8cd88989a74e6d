package domain

import "time"

// Comment is a user remark attached to a market.
type Comment struct {
	ID        int64     `json:"id"`
	MarketID  string    `json:"marketId"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	ParentID  *int64    `json:"parentCommentId"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	CreatedAt time.Time `json:"timestamp"`
}

// NewComment carries the fields needed to create a comment.
type NewComment struct {
	MarketID string
	Author   string
	Content  string
	ParentID *int64
}

// CommentEvent is published on the signal bus when comments change.
type CommentEvent struct {
	Type    string  `json:"type"`
	Channel string  `json:"channel"`
	Comment Comment `json:"comment"`
}

// CommentChannel returns the pub/sub channel for a market's comment feed.
func CommentChannel(marketID string) string {
	return "comments:" + marketID
}
