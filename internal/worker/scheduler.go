// Package worker はバックグラウンドジョブの定期実行を提供する。
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job は定期実行されるジョブ。
type Job interface {
	Run(ctx context.Context) error
}

// Schedule はジョブと実行間隔の組。
type Schedule struct {
	Name     string
	Job      Job
	Interval time.Duration
}

// Scheduler は登録されたジョブをそれぞれの間隔で実行する。
// ジョブごとに独立したティッカーを持ち、1つのジョブの失敗は他に影響しない。
type Scheduler struct {
	schedules []Schedule
	logger    *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// Intervalが0以下のスケジュールは登録されない。
func NewScheduler(logger *slog.Logger, schedules ...Schedule) *Scheduler {
	s := &Scheduler{logger: logger}
	for _, sc := range schedules {
		if sc.Interval <= 0 {
			logger.Warn("実行間隔が不正なジョブを無視しました",
				slog.String("job", sc.Name),
				slog.Duration("interval", sc.Interval),
			)
			continue
		}
		s.schedules = append(s.schedules, sc)
	}
	return s
}

// Start は全ジョブを起動直後に1回実行し、以降はそれぞれの間隔で実行する。
// コンテキストがキャンセルされ、実行中のジョブが終わるまでブロックする。
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sc := range s.schedules {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, sc)
		}()
	}
	wg.Wait()
	s.logger.Info("ジョブスケジューラを停止しました")
}

func (s *Scheduler) loop(ctx context.Context, sc Schedule) {
	ticker := time.NewTicker(sc.Interval)
	defer ticker.Stop()

	s.logger.Info("ジョブを開始しました",
		slog.String("job", sc.Name),
		slog.Duration("interval", sc.Interval),
	)

	// 起動直後に1回実行
	s.runJob(ctx, sc)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, sc)
		}
	}
}

// RunOnce は全ジョブを1回ずつ並列に実行する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sc := range s.schedules {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runJob(ctx, sc)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, sc Schedule) {
	if err := sc.Job.Run(ctx); err != nil {
		s.logger.Error("ジョブの実行に失敗しました",
			slog.String("job", sc.Name),
			slog.String("error", err.Error()),
		)
	}
}
