package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialfeed/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	AddComment(ctx context.Context, authorID, postID, content string) (*model.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]model.CommentView, error)
}

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{
		service: service,
	}
}

type createCommentRequest struct {
	Content string `json:"content"`
}

type commentResponse struct {
	ID             string    `json:"id"`
	PostID         string    `json:"post_id"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type commentListResponse struct {
	Comments []commentResponse `json:"comments"`
}

// ListComments は投稿のコメントを古い順に返す。
// GET /api/posts/{id}/comments
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListByPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := commentListResponse{Comments: make([]commentResponse, 0, len(comments))}
	for _, c := range comments {
		cr := toCommentResponse(&c.Comment)
		cr.AuthorUsername = c.AuthorUsername
		resp.Comments = append(resp.Comments, cr)
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateComment は投稿にコメントする。
// POST /api/posts/{id}/comments
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	c, err := h.service.AddComment(r.Context(), userID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}
