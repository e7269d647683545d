// Package like はいいねのトグルと集計の整合性維持を提供する。
package like

import (
	"context"
	"log/slog"

	"github.com/hitoshi/socialfeed/internal/metrics"
	"github.com/hitoshi/socialfeed/internal/model"
	"github.com/hitoshi/socialfeed/internal/repository"
)

// Service はいいね台帳のサービス。
// posts.likesの更新はすべてリポジトリのトランザクション内で行われる。
type Service struct {
	likeRepo repository.LikeRepository
	metrics  metrics.Recorder
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(likeRepo repository.LikeRepository, recorder metrics.Recorder) *Service {
	return &Service{
		likeRepo: likeRepo,
		metrics:  metrics.OrNop(recorder),
	}
}

// Toggle はuserIDによるpostIDへのいいねを反転し、結果とトグル後のいいね数を返す。
// 投稿が存在しない場合はPOST_NOT_FOUNDを返す。
func (s *Service) Toggle(ctx context.Context, userID, postID string) (*model.ToggleOutcome, error) {
	if !model.ValidID(postID) {
		return nil, model.NewPostNotFoundError(postID)
	}
	if !model.ValidID(userID) {
		return nil, model.NewUserNotFoundError()
	}

	outcome, err := s.likeRepo.Toggle(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLikeToggled(string(outcome.Result))
	slog.Debug("like toggled",
		slog.String("post_id", postID),
		slog.String("user_id", userID),
		slog.String("result", string(outcome.Result)),
		slog.Int("likes", outcome.Likes),
	)
	return outcome, nil
}

// IsLiked はuserIDがpostIDにいいねしているかを返す。
func (s *Service) IsLiked(ctx context.Context, userID, postID string) (bool, error) {
	if !model.ValidID(userID) || !model.ValidID(postID) {
		return false, nil
	}
	return s.likeRepo.Exists(ctx, userID, postID)
}

// LikedPostIDs はuserIDがいいねしている投稿IDの集合を返す。
func (s *Service) LikedPostIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if !model.ValidID(userID) {
		return set, nil
	}

	ids, err := s.likeRepo.ListPostIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// CountDrift はいいねカウンタが実際の行数とずれている投稿を返す。
func (s *Service) CountDrift(ctx context.Context) ([]repository.CounterDrift, error) {
	return s.likeRepo.ListDrift(ctx)
}

// Reconcile は全投稿のいいねカウンタを行数から再計算し、修正した投稿数を返す。
func (s *Service) Reconcile(ctx context.Context) (int64, error) {
	repaired, err := s.likeRepo.Reconcile(ctx)
	if err != nil {
		return repaired, err
	}
	if repaired > 0 {
		s.metrics.RecordCountersRepaired(repaired)
		slog.Warn("like counters repaired", slog.Int64("repaired", repaired))
	}
	return repaired, nil
}
