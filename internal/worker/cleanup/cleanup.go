// Package cleanup は期限切れセッションの削除ジョブを提供する。
// Redisストアはキーの TTL で失効するため、PostgreSQLストア使用時のみ登録される。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultBatchSize は1文で削除するセッションの上限。
const DefaultBatchSize = 1000

// deleteExpiredSessionsQuery はcutoffより前に失効したセッションを最大$2件削除する。
// 一度に大量の行ロックを取らないようにバッチで消す。
const deleteExpiredSessionsQuery = `
	DELETE FROM sessions
	WHERE id IN (
		SELECT id FROM sessions
		WHERE expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	)`

// Executor は*sql.DBと*sql.Txが満たすExecContextだけのインターフェース。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。冪等。
type SessionCleanupJob struct {
	db     Executor
	logger *slog.Logger
	now    func() time.Time

	// GracePeriod は失効から削除までの猶予。
	GracePeriod time.Duration
	// BatchSize は1文あたりの削除件数。0以下ならDefaultBatchSize。
	BatchSize int
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(db Executor, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Run は失効済みセッションを、1バッチの削除件数が上限を下回るまで繰り返し削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.Add(-j.GracePeriod).UTC()

	batchSize := j.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var deleted int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := j.db.ExecContext(ctx, deleteExpiredSessionsQuery, cutoff, batchSize)
		if err != nil {
			j.logger.Error("期限切れセッションの削除に失敗しました",
				slog.Int64("deleted_count", deleted),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("削除件数の取得に失敗: %w", err)
		}
		deleted += n

		if n < int64(batchSize) {
			break
		}
	}

	j.logger.Info("セッションクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Time("cutoff", cutoff),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
