package handler

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialfeed/internal/model"
)

// LikeServiceInterface はいいねハンドラーが必要とするサービスインターフェース。
type LikeServiceInterface interface {
	Toggle(ctx context.Context, userID, postID string) (*model.ToggleOutcome, error)
	LikedPostIDs(ctx context.Context, userID string) (map[string]struct{}, error)
}

// LikeHandler はいいねのHTTPハンドラー。
type LikeHandler struct {
	service LikeServiceInterface
}

// NewLikeHandler はLikeHandlerを生成する。
func NewLikeHandler(service LikeServiceInterface) *LikeHandler {
	return &LikeHandler{
		service: service,
	}
}

type toggleLikeResponse struct {
	PostID string `json:"post_id"`
	Result string `json:"result"`
	Likes  int    `json:"likes"`
}

type likedPostsResponse struct {
	PostIDs []string `json:"post_ids"`
}

// ToggleLike は投稿へのいいねを反転する。
// POST /api/posts/{id}/like
func (h *LikeHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	outcome, err := h.service.Toggle(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toggleLikeResponse{
		PostID: outcome.PostID,
		Result: string(outcome.Result),
		Likes:  outcome.Likes,
	})
}

// ListLikedPosts はログインユーザーがいいねしている投稿IDを返す。
// GET /api/users/me/likes
func (h *LikeHandler) ListLikedPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	liked, err := h.service.LikedPostIDs(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ids := make([]string, 0, len(liked))
	for id := range liked {
		ids = append(ids, id)
	}
	// マップの反復順は不定なのでレスポンスを安定させる
	slices.Sort(ids)

	writeJSON(w, http.StatusOK, likedPostsResponse{PostIDs: ids})
}
