// Package likeaudit はいいねカウンタの監査・修復ジョブを提供する。
package likeaudit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/socialfeed/internal/repository"
)

// Reconciler はいいねカウンタの検査と修復を行うインターフェース。
// like.Serviceが実装する。
type Reconciler interface {
	CountDrift(ctx context.Context) ([]repository.CounterDrift, error)
	Reconcile(ctx context.Context) (int64, error)
}

// Job はposts.likesとlikes行数のずれを検出して修復するジョブ。
// 正常時はずれが存在しないため、修復件数が0以外なら警告として記録する。
type Job struct {
	reconciler Reconciler
	logger     *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(reconciler Reconciler, logger *slog.Logger) *Job {
	return &Job{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Run はずれを検出し、あれば修復する。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	drifts, err := j.reconciler.CountDrift(ctx)
	if err != nil {
		j.logger.Error("いいねカウンタの検査に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("いいねカウンタの検査に失敗: %w", err)
	}

	for _, d := range drifts {
		j.logger.Warn("いいねカウンタのずれを検出しました",
			slog.String("post_id", d.PostID),
			slog.Int("counter", d.Counter),
			slog.Int("actual", d.Actual),
		)
	}

	var repaired int64
	if len(drifts) > 0 {
		repaired, err = j.reconciler.Reconcile(ctx)
		if err != nil {
			j.logger.Error("いいねカウンタの修復に失敗しました",
				slog.Int64("repaired", repaired),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("いいねカウンタの修復に失敗: %w", err)
		}
	}

	j.logger.Info("いいねカウンタ監査ジョブが完了しました",
		slog.Int("drift_count", len(drifts)),
		slog.Int64("repaired", repaired),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
