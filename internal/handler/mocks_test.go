package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialfeed/internal/auth"
	"github.com/hitoshi/socialfeed/internal/middleware"
	"github.com/hitoshi/socialfeed/internal/model"
	"github.com/hitoshi/socialfeed/internal/post"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	loginFn          func(ctx context.Context, username, password string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, auth.ErrUnauthenticated
}

type mockPostService struct {
	createPostFn   func(ctx context.Context, authorID, content string) (*model.Post, error)
	getPostFn      func(ctx context.Context, viewerID, postID string) (*model.PostView, error)
	listRecentFn   func(ctx context.Context, viewerID, cursor string, limit int) (*post.Page, error)
	listByAuthorFn func(ctx context.Context, authorID, viewerID, cursor string, limit int) (*post.Page, error)
	deletePostFn   func(ctx context.Context, requesterID, postID string) error
}

func (m *mockPostService) CreatePost(ctx context.Context, authorID, content string) (*model.Post, error) {
	if m.createPostFn != nil {
		return m.createPostFn(ctx, authorID, content)
	}
	return &model.Post{ID: "post-1", AuthorID: authorID, Content: content}, nil
}

func (m *mockPostService) GetPost(ctx context.Context, viewerID, postID string) (*model.PostView, error) {
	if m.getPostFn != nil {
		return m.getPostFn(ctx, viewerID, postID)
	}
	return nil, model.NewPostNotFoundError(postID)
}

func (m *mockPostService) ListRecent(ctx context.Context, viewerID, cursor string, limit int) (*post.Page, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, viewerID, cursor, limit)
	}
	return &post.Page{Posts: []model.PostView{}}, nil
}

func (m *mockPostService) ListByAuthor(ctx context.Context, authorID, viewerID, cursor string, limit int) (*post.Page, error) {
	if m.listByAuthorFn != nil {
		return m.listByAuthorFn(ctx, authorID, viewerID, cursor, limit)
	}
	return &post.Page{Posts: []model.PostView{}}, nil
}

func (m *mockPostService) DeletePost(ctx context.Context, requesterID, postID string) error {
	if m.deletePostFn != nil {
		return m.deletePostFn(ctx, requesterID, postID)
	}
	return nil
}

type mockLikeService struct {
	toggleFn       func(ctx context.Context, userID, postID string) (*model.ToggleOutcome, error)
	likedPostIDsFn func(ctx context.Context, userID string) (map[string]struct{}, error)
}

func (m *mockLikeService) Toggle(ctx context.Context, userID, postID string) (*model.ToggleOutcome, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, userID, postID)
	}
	return &model.ToggleOutcome{PostID: postID, Result: model.ToggleLiked, Likes: 1}, nil
}

func (m *mockLikeService) LikedPostIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	if m.likedPostIDsFn != nil {
		return m.likedPostIDsFn(ctx, userID)
	}
	return map[string]struct{}{}, nil
}

type mockCommentService struct {
	addCommentFn func(ctx context.Context, authorID, postID, content string) (*model.Comment, error)
	listByPostFn func(ctx context.Context, postID string) ([]model.CommentView, error)
}

func (m *mockCommentService) AddComment(ctx context.Context, authorID, postID, content string) (*model.Comment, error) {
	if m.addCommentFn != nil {
		return m.addCommentFn(ctx, authorID, postID, content)
	}
	return &model.Comment{ID: "comment-1", PostID: postID, AuthorID: authorID, Content: content}, nil
}

func (m *mockCommentService) ListByPost(ctx context.Context, postID string) ([]model.CommentView, error) {
	if m.listByPostFn != nil {
		return m.listByPostFn(ctx, postID)
	}
	return []model.CommentView{}, nil
}

type mockSessionFinder struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinder) FindByID(_ context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s, nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}

// --- テストヘルパー ---

// withUser はセッションミドルウェアを通過した状態のリクエストを返す。
func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withURLParam はchiのURLパラメータを設定したリクエストを返す。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response body %q: %v", w.Body.String(), err)
	}
	return v
}

// assertAPIError はレスポンスのステータスとエラーコードを検証する。
func assertAPIError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	body := decodeBody[middleware.ErrorResponseBody](t, w)
	if body.Code != wantCode {
		t.Errorf("code = %q, want %q", body.Code, wantCode)
	}
}

func validSession(id, userID string) *model.Session {
	return &model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
}
