package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialfeed/internal/model"
	"github.com/hitoshi/socialfeed/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	CreatePost(ctx context.Context, authorID, content string) (*model.Post, error)
	GetPost(ctx context.Context, viewerID, postID string) (*model.PostView, error)
	ListRecent(ctx context.Context, viewerID, cursor string, limit int) (*post.Page, error)
	ListByAuthor(ctx context.Context, authorID, viewerID, cursor string, limit int) (*post.Page, error)
	DeletePost(ctx context.Context, requesterID, postID string) error
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{
		service: service,
	}
}

type createPostRequest struct {
	Content string `json:"content"`
}

// postResponse は作成直後の投稿のAPIレスポンス。
type postResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// postViewResponse は閲覧者視点の投稿のAPIレスポンス。
type postViewResponse struct {
	postResponse
	AuthorUsername string `json:"author_username"`
	LikedByViewer  bool   `json:"liked_by_viewer"`
	CommentCount   int    `json:"comment_count"`
}

type postPageResponse struct {
	Posts      []postViewResponse `json:"posts"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

// ListPosts は全投稿の新着順一覧を返す。
// GET /api/posts?cursor=xxx&limit=20
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, err := h.service.ListRecent(r.Context(), userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostPageResponse(page))
}

// CreatePost は投稿を作成する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	p, err := h.service.CreatePost(r.Context(), userID, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// GetPost は投稿を1件返す。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetPost(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostViewResponse(*view))
}

// DeletePost は自分の投稿を削除する。コメントといいねも削除される。
// DELETE /api/posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePost(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseLimit はlimitクエリを解析する。未指定は0（既定の件数）とする。
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, model.NewInvalidInputError("無効なlimit値: " + raw)
	}
	return limit, nil
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		Likes:     p.Likes,
		CreatedAt: p.CreatedAt,
	}
}

func toPostViewResponse(v model.PostView) postViewResponse {
	return postViewResponse{
		postResponse:   toPostResponse(&v.Post),
		AuthorUsername: v.AuthorUsername,
		LikedByViewer:  v.LikedByViewer,
		CommentCount:   v.CommentCount,
	}
}

func toPostPageResponse(page *post.Page) postPageResponse {
	posts := make([]postViewResponse, 0, len(page.Posts))
	for _, v := range page.Posts {
		posts = append(posts, toPostViewResponse(v))
	}
	return postPageResponse{
		Posts:      posts,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
}
