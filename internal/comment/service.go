// Package comment は投稿へのコメントを提供する。
package comment

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/socialfeed/internal/metrics"
	"github.com/hitoshi/socialfeed/internal/model"
	"github.com/hitoshi/socialfeed/internal/repository"
	"github.com/hitoshi/socialfeed/internal/security"
)

// MaxCommentLength はコメント本文の最大文字数（ルーン数）。
const MaxCommentLength = 500

// Service はコメントのサービス。
type Service struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	sanitizer   security.ContentSanitizer
	metrics     metrics.Recorder
}

// NewService はServiceを生成する。
func NewService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	sanitizer security.ContentSanitizer,
	recorder metrics.Recorder,
) *Service {
	return &Service{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		sanitizer:   sanitizer,
		metrics:     metrics.OrNop(recorder),
	}
}

// AddComment はpostIDの投稿にコメントを追加する。
// 投稿の存在確認は挿入と同じトランザクションで行われる。
func (s *Service) AddComment(ctx context.Context, authorID, postID, content string) (*model.Comment, error) {
	if !model.ValidID(postID) {
		return nil, model.NewPostNotFoundError(postID)
	}
	if !model.ValidID(authorID) {
		return nil, model.NewUserNotFoundError()
	}

	text, err := security.NormalizeContent(s.sanitizer, content, MaxCommentLength)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		AuthorID:  authorID,
		Content:   text,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.commentRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.metrics.RecordCommentCreated()
	slog.Info("comment created",
		slog.String("comment_id", c.ID),
		slog.String("post_id", postID),
		slog.String("author_id", authorID),
	)
	return c, nil
}

// ListByPost は投稿のコメントを古い順に返す。
func (s *Service) ListByPost(ctx context.Context, postID string) ([]model.CommentView, error) {
	if !model.ValidID(postID) {
		return nil, model.NewPostNotFoundError(postID)
	}

	p, err := s.postRepo.FindByID(ctx, postID, "")
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []model.CommentView{}
	}
	return comments, nil
}
