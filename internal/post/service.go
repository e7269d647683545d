// Package post は投稿の作成、一覧、削除を提供する。
package post

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/socialfeed/internal/metrics"
	"github.com/hitoshi/socialfeed/internal/model"
	"github.com/hitoshi/socialfeed/internal/repository"
	"github.com/hitoshi/socialfeed/internal/security"
)

const (
	// MaxPostLength は投稿本文の最大文字数（ルーン数）。
	MaxPostLength = 1000
	// DefaultPageSize はlimit未指定時の1ページの件数。
	DefaultPageSize = 20
	// MaxPageSize は1ページの最大件数。
	MaxPageSize = 100
	// iterPageSize はイテレータが内部で取得する1ページの件数。
	iterPageSize = 50
)

// Page は投稿一覧の1ページ分の結果。
type Page struct {
	Posts      []model.PostView
	NextCursor string
	HasMore    bool
}

// Service は投稿に関するビジネスロジックを提供する。
type Service struct {
	postRepo  repository.PostRepository
	sanitizer security.ContentSanitizer
	metrics   metrics.Recorder
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(
	postRepo repository.PostRepository,
	sanitizer security.ContentSanitizer,
	recorder metrics.Recorder,
) *Service {
	return &Service{
		postRepo:  postRepo,
		sanitizer: sanitizer,
		metrics:   metrics.OrNop(recorder),
	}
}

// CreatePost は投稿を作成する。
// 本文は前後の空白を取り除いて検証され、マークアップを含む場合は拒否される。
func (s *Service) CreatePost(ctx context.Context, authorID, content string) (*model.Post, error) {
	if !model.ValidID(authorID) {
		return nil, model.NewUserNotFoundError()
	}

	text, err := security.NormalizeContent(s.sanitizer, content, MaxPostLength)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Content:   text,
		Likes:     0,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	s.metrics.RecordPostCreated()
	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("author_id", authorID),
	)
	return post, nil
}

// GetPost は投稿を閲覧者視点で取得する。
func (s *Service) GetPost(ctx context.Context, viewerID, postID string) (*model.PostView, error) {
	if !model.ValidID(postID) {
		return nil, model.NewPostNotFoundError(postID)
	}

	view, err := s.postRepo.FindByID(ctx, postID, viewerArg(viewerID))
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return view, nil
}

// ListRecent は全投稿の新しい順の1ページを返す。
// cursorは前ページのNextCursor、空文字列は先頭を示す。
func (s *Service) ListRecent(ctx context.Context, viewerID, cursor string, limit int) (*Page, error) {
	c, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	views, err := s.postRepo.ListRecent(ctx, viewerArg(viewerID), c, limit+1)
	if err != nil {
		return nil, err
	}
	return buildPage(views, limit), nil
}

// ListByAuthor は指定ユーザーの投稿の新しい順の1ページを返す。
func (s *Service) ListByAuthor(ctx context.Context, authorID, viewerID, cursor string, limit int) (*Page, error) {
	c, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	// 不正なIDの作者には投稿が存在しない
	if !model.ValidID(authorID) {
		return &Page{Posts: []model.PostView{}}, nil
	}

	views, err := s.postRepo.ListByAuthor(ctx, authorID, viewerArg(viewerID), c, limit+1)
	if err != nil {
		return nil, err
	}
	return buildPage(views, limit), nil
}

// Recent は全投稿を新しい順に返すイテレータを返す。
// 呼び出すたびに先頭から走査し直し、ストアからは必要な分だけページ単位で取得する。
// 取得に失敗した場合はエラーを1度yieldして終了する。
func (s *Service) Recent(ctx context.Context) iter.Seq2[*model.Post, error] {
	return s.iterate(func(c model.Cursor) ([]model.PostView, error) {
		return s.postRepo.ListRecent(ctx, "", c, iterPageSize)
	})
}

// ByAuthor は指定ユーザーの投稿を新しい順に返すイテレータを返す。
func (s *Service) ByAuthor(ctx context.Context, authorID string) iter.Seq2[*model.Post, error] {
	if !model.ValidID(authorID) {
		return func(yield func(*model.Post, error) bool) {}
	}
	return s.iterate(func(c model.Cursor) ([]model.PostView, error) {
		return s.postRepo.ListByAuthor(ctx, authorID, "", c, iterPageSize)
	})
}

func (s *Service) iterate(fetch func(c model.Cursor) ([]model.PostView, error)) iter.Seq2[*model.Post, error] {
	return func(yield func(*model.Post, error) bool) {
		var cursor model.Cursor
		for {
			views, err := fetch(cursor)
			if err != nil {
				yield(nil, fmt.Errorf("failed to fetch posts: %w", err))
				return
			}

			for i := range views {
				p := views[i].Post
				if !yield(&p, nil) {
					return
				}
			}

			if len(views) < iterPageSize {
				return
			}
			last := views[len(views)-1]
			cursor = model.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// DeletePost は投稿を削除する。作者以外はFORBIDDENとなる。
// コメント・いいねも同じトランザクションで削除される。
func (s *Service) DeletePost(ctx context.Context, requesterID, postID string) error {
	if !model.ValidID(postID) {
		return model.NewPostNotFoundError(postID)
	}
	if !model.ValidID(requesterID) {
		return model.NewForbiddenError()
	}

	if err := s.postRepo.DeleteOwned(ctx, requesterID, postID); err != nil {
		return err
	}

	s.metrics.RecordPostDeleted()
	slog.Info("post deleted",
		slog.String("post_id", postID),
		slog.String("author_id", requesterID),
	)
	return nil
}

func buildPage(views []model.PostView, limit int) *Page {
	hasMore := len(views) > limit
	if hasMore {
		views = views[:limit]
	}
	if views == nil {
		views = []model.PostView{}
	}

	page := &Page{Posts: views, HasMore: hasMore}
	if hasMore && len(views) > 0 {
		last := views[len(views)-1]
		page.NextCursor = EncodeCursor(model.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// viewerArg は不正な閲覧者IDを匿名として扱う。
func viewerArg(viewerID string) string {
	if !model.ValidID(viewerID) {
		return ""
	}
	return viewerID
}
