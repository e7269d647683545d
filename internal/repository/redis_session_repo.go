package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/socialfeed/internal/model"
)

const redisSessionKeyPrefix = "session:"

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// セッションはexpires_atまでのTTL付きで保存され、期限切れはRedisが削除する。
type RedisSessionRepo struct {
	client redis.Cmdable
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client redis.Cmdable) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

// redisSession はRedisに保存するセッションのJSON表現。
type redisSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Create はセッションを作成する。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired: %s", session.ID)
	}

	data, err := json.Marshal(redisSession{
		ID:        session.ID,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, redisSessionKeyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.client.Get(ctx, redisSessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	// TTLの丸めで期限直後に読める場合があるため、ここでも判定する
	if !rs.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	return &model.Session{
		ID:        rs.ID,
		UserID:    rs.UserID,
		ExpiresAt: rs.ExpiresAt,
		CreatedAt: rs.CreatedAt,
	}, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisSessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
