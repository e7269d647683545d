package handler

import (
	"net/http"
)

// UserHandler はログインユーザー自身のリソースのHTTPハンドラー。
type UserHandler struct {
	posts PostServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(posts PostServiceInterface) *UserHandler {
	return &UserHandler{
		posts: posts,
	}
}

// ListMyPosts はログインユーザーの投稿を新着順で返す。
// GET /api/users/me/posts?cursor=xxx&limit=20
func (h *UserHandler) ListMyPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, err := h.posts.ListByAuthor(r.Context(), userID, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostPageResponse(page))
}
