// Package auth はユーザー登録、パスワード認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/socialfeed/internal/model"
	"github.com/hitoshi/socialfeed/internal/repository"
)

// 入力値の上限（usersテーブルの列サイズと一致させる）
const (
	MaxUsernameLength = 50
	MaxEmailLength    = 100
	// MaxPasswordBytes はbcryptが扱える最大バイト数。
	MaxPasswordBytes = 72
)

// ErrUnauthenticated はセッションが存在しない、または期限切れであることを示す。
var ErrUnauthenticated = errors.New("session not found or expired")

// dummyPassword は存在しないユーザーの認証時に比較するダミーのパスワード。
const dummyPassword = "socialfeed-dummy-password"

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig

	dummyHashOnce sync.Once
	dummyHash     []byte
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Register はユーザーを登録する。
// ユーザー名・メールアドレスの重複はDUPLICATE_USERNAME / DUPLICATE_EMAILを返す。
// ユーザー名を先に検査する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	if err := validateRegisterInput(username, email, in.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateUsernameError(username)
	}

	existing, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	// 同時登録で事前検査をすり抜けた場合はリポジトリが一意制約違反を重複エラーに変換する
	if err := s.userRepo.Create(ctx, user); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

func validateRegisterInput(username, email, password string) error {
	switch {
	case username == "":
		return model.NewInvalidInputError("ユーザー名は必須です")
	case email == "":
		return model.NewInvalidInputError("メールアドレスは必須です")
	case password == "":
		return model.NewInvalidInputError("パスワードは必須です")
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return model.NewInvalidInputError(fmt.Sprintf("ユーザー名は%d文字以内で指定してください", MaxUsernameLength))
	case utf8.RuneCountInString(email) > MaxEmailLength:
		return model.NewInvalidInputError(fmt.Sprintf("メールアドレスは%d文字以内で指定してください", MaxEmailLength))
	case len(password) > MaxPasswordBytes:
		return model.NewInvalidInputError(fmt.Sprintf("パスワードは%dバイト以内で指定してください", MaxPasswordBytes))
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewInvalidInputError("メールアドレスの形式が正しくありません")
	}
	return nil
}

// Authenticate はユーザー名とパスワードを検証する。
// ユーザーが存在しない場合もダミーハッシュとの比較を行い、応答時間で存在を推測できないようにする。
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.getDummyHash(), []byte(password))
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	return user, nil
}

// getDummyHash は設定されたコストで生成したダミーハッシュを返す。
func (s *Service) getDummyHash() []byte {
	s.dummyHashOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), s.config.BcryptCost)
		if err != nil {
			slog.Error("failed to generate dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Login はユーザーを認証し、セッションを発行する。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションがない、期限切れ、またはユーザーが削除済みの場合はErrUnauthenticatedを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
