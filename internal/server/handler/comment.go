package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/server/middleware"
	"github.com/pulsedelta/backend/internal/server/response"
	"github.com/pulsedelta/backend/internal/validate"
)

// CommentService is the slice of the comment service the handler needs.
type CommentService interface {
	List(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Comment, int64, error)
	Create(ctx context.Context, nc domain.NewComment) (domain.Comment, error)
	Delete(ctx context.Context, id int64, requester string) error
}

// CommentHandler serves market comment threads.
type CommentHandler struct {
	comments CommentService
	bounds   validate.ContentBounds
	logger   *slog.Logger
}

// NewCommentHandler creates a CommentHandler. bounds limits the trimmed
// comment length.
func NewCommentHandler(comments CommentService, bounds validate.ContentBounds, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, bounds: bounds, logger: logger}
}

type deletedComment struct {
	CommentID int64 `json:"commentId"`
}

// ListComments returns one page of a market's comments, newest first.
// GET /api/v1/comments/market/{marketId}?page=1&limit=50
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	p, err := validate.CommentList(pathParam(r, "marketId"), r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err, "Comment", "list comments")
		return
	}

	comments, total, err := h.comments.List(r.Context(), p.MarketID, listOpts(p.Page))
	if err != nil {
		writeError(w, r, h.logger, err, "Comment", "list comments")
		return
	}
	response.Paginated(w, comments, p.Page.Page, p.Page.Limit, total, "Comments retrieved successfully")
}

// CreateComment posts a comment or a reply.
// POST /api/v1/comments
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, r, h.logger, err, "Comment", "create comment")
		return
	}
	bindWallet(r, body)

	nc, err := validate.CreateComment(body, h.bounds)
	if err != nil {
		writeError(w, r, h.logger, err, "Comment", "create comment")
		return
	}
	if !walletMatches(r, nc.Author) {
		response.Error(w, http.StatusForbidden, msgForbidden, nil)
		return
	}

	c, err := h.comments.Create(r.Context(), nc)
	if err != nil {
		resource := "Market"
		if nc.ParentID != nil {
			resource = "Market or parent comment"
		}
		writeError(w, r, h.logger, err, resource, "create comment")
		return
	}
	response.Success(w, http.StatusCreated, c, "Comment created successfully")
}

// DeleteComment soft-deletes a comment owned by the caller.
// DELETE /api/v1/comments/{commentId}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, r, h.logger, err, "Comment", "delete comment")
		return
	}
	bindWallet(r, body)

	p, err := validate.DeleteComment(pathParam(r, "commentId"), body)
	if err != nil {
		writeError(w, r, h.logger, err, "Comment", "delete comment")
		return
	}
	if !walletMatches(r, p.Author) {
		response.Error(w, http.StatusForbidden, msgForbidden, nil)
		return
	}

	if err := h.comments.Delete(r.Context(), p.CommentID, p.Author); err != nil {
		writeError(w, r, h.logger, err, "Comment", "delete comment")
		return
	}
	response.Success(w, http.StatusOK, deletedComment{CommentID: p.CommentID}, "Comment deleted successfully")
}

// bindWallet fills a missing userAddress from the authenticated wallet.
func bindWallet(r *http.Request, body map[string]any) {
	wallet, ok := middleware.WalletFrom(r.Context())
	if !ok {
		return
	}
	if v, present := body["userAddress"]; !present || v == nil {
		body["userAddress"] = wallet
	}
}

// walletMatches reports whether address may act for the authenticated
// wallet. Unauthenticated requests always match.
func walletMatches(r *http.Request, address string) bool {
	wallet, ok := middleware.WalletFrom(r.Context())
	return !ok || strings.EqualFold(wallet, address)
}
