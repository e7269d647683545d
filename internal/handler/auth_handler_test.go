package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/socialfeed/internal/auth"
	"github.com/hitoshi/socialfeed/internal/middleware"
	"github.com/hitoshi/socialfeed/internal/model"
)

func newTestAuthHandler(svc *mockAuthService) *AuthHandler {
	return NewAuthHandler(svc, AuthHandlerConfig{
		CookieDomain:  "",
		CookieSecure:  true,
		SessionMaxAge: 86400,
	})
}

func findResponseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Register_Created(t *testing.T) {
	var got auth.RegisterInput
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			got = in
			return &model.User{
				ID:           "user-1",
				Username:     in.Username,
				Email:        in.Email,
				PasswordHash: "$2a$10$secret",
			}, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		jsonBody(`{"username":"alice","email":"alice@example.com","password":"pw123456"}`))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.Username != "alice" || got.Email != "alice@example.com" || got.Password != "pw123456" {
		t.Errorf("service received %+v", got)
	}

	body := decodeBody[map[string]any](t, w)
	if body["id"] != "user-1" || body["username"] != "alice" || body["email"] != "alice@example.com" {
		t.Errorf("unexpected body: %v", body)
	}
	if _, ok := body["password_hash"]; ok {
		t.Error("response must not include password hash")
	}
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "重複ユーザー名は409",
			body:       `{"username":"alice","email":"a@example.com","password":"pw"}`,
			svcErr:     model.NewDuplicateUsernameError("alice"),
			wantStatus: http.StatusConflict,
			wantCode:   model.ErrCodeDuplicateUsername,
		},
		{
			name:       "重複メールアドレスは409",
			body:       `{"username":"bob","email":"a@example.com","password":"pw"}`,
			svcErr:     model.NewDuplicateEmailError(),
			wantStatus: http.StatusConflict,
			wantCode:   model.ErrCodeDuplicateEmail,
		},
		{
			name:       "入力不正は400",
			body:       `{"username":"","email":"a@example.com","password":"pw"}`,
			svcErr:     model.NewInvalidInputError("ユーザー名は必須です"),
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidInput,
		},
		{
			name:       "不正なJSONは400",
			body:       `{"username":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidInput,
		},
		{
			name:       "未知のフィールドは400",
			body:       `{"username":"alice","email":"a@example.com","password":"pw","admin":true}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
					if tt.svcErr == nil {
						t.Fatal("service should not be called")
					}
					return nil, tt.svcErr
				},
			}
			h := newTestAuthHandler(svc)

			w := httptest.NewRecorder()
			h.Register(w, httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(tt.body)))

			assertAPIError(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestAuthHandler_Login_SetsSessionCookie(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.Session, error) {
			if username != "alice" || password != "pw123456" {
				t.Errorf("credentials = %q/%q", username, password)
			}
			return &model.Session{ID: "session-abc", UserID: "user-1", ExpiresAt: expires}, nil
		},
	}
	h := newTestAuthHandler(svc)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login",
		jsonBody(`{"username":"alice","password":"pw123456"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	cookie := findResponseCookie(w.Result(), middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if cookie.Value != "session-abc" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "session-abc")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if !cookie.Secure {
		t.Error("session cookie must be Secure when configured")
	}
	if cookie.MaxAge != 86400 {
		t.Errorf("MaxAge = %d, want 86400", cookie.MaxAge)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", cookie.SameSite)
	}

	body := decodeBody[loginResponse](t, w)
	if body.UserID != "user-1" {
		t.Errorf("user_id = %q, want user-1", body.UserID)
	}
	if !body.ExpiresAt.Equal(expires) {
		t.Errorf("expires_at = %v, want %v", body.ExpiresAt, expires)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.Session, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := newTestAuthHandler(svc)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login",
		jsonBody(`{"username":"alice","password":"wrong"}`)))

	assertAPIError(t, w, http.StatusUnauthorized, model.ErrCodeInvalidCredentials)
	if findResponseCookie(w.Result(), middleware.SessionCookieName) != nil {
		t.Error("session cookie must not be set on failed login")
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if loggedOut != "session-abc" {
		t.Errorf("logged out session = %q, want session-abc", loggedOut)
	}
	cookie := findResponseCookie(w.Result(), middleware.SessionCookieName)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Errorf("expected cleared session cookie, got %+v", cookie)
	}
}

func TestAuthHandler_Logout_ServiceErrorStillClearsCookie(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			return errors.New("db down")
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if findResponseCookie(w.Result(), middleware.SessionCookieName) == nil {
		t.Error("expected session cookie to be cleared")
	}
}

func TestAuthHandler_Logout_WithoutCookie(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			called = true
			return nil
		},
	}
	h := newTestAuthHandler(svc)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if called {
		t.Error("service.Logout should not be called without a session cookie")
	}
}

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID != "session-abc" {
				return nil, auth.ErrUnauthenticated
			}
			return &model.User{ID: "user-1", Username: "alice", Email: "alice@example.com"}, nil
		},
	}
	h := newTestAuthHandler(svc)

	t.Run("有効なセッション", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
		w := httptest.NewRecorder()

		h.Me(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		body := decodeBody[userResponse](t, w)
		if body.Username != "alice" {
			t.Errorf("username = %q, want alice", body.Username)
		}
	})

	t.Run("Cookieなしは401", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		assertAPIError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthenticated)
	})

	t.Run("無効なセッションは401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "expired"})
		w := httptest.NewRecorder()

		h.Me(w, req)

		assertAPIError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthenticated)
	})
}
