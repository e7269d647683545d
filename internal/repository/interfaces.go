// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/socialfeed/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// 一意制約違反はDUPLICATE_USERNAME / DUPLICATE_EMAILのAPIErrorに変換される。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成する。likesは0で保存される。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を閲覧者視点で取得する。見つからない場合はnilを返す。
	// viewerIDが空の場合LikedByViewerは常にfalse。
	FindByID(ctx context.Context, id, viewerID string) (*model.PostView, error)

	// ListRecent は全投稿をcreated_at降順・id降順で取得する。
	// cursorより後ろ（古い側）の投稿を最大limit件返す。
	ListRecent(ctx context.Context, viewerID string, cursor model.Cursor, limit int) ([]model.PostView, error)

	// ListByAuthor は指定ユーザーの投稿をListRecentと同じ順序で取得する。
	ListByAuthor(ctx context.Context, authorID, viewerID string, cursor model.Cursor, limit int) ([]model.PostView, error)

	// DeleteOwned は投稿を削除する。
	// 同一トランザクション内で投稿行をロックし、コメント・いいね・投稿の順に削除する。
	// 投稿がない場合はPOST_NOT_FOUND、requesterIDが作者でない場合はFORBIDDENを返す。
	DeleteOwned(ctx context.Context, requesterID, postID string) error
}

// LikeRepository はいいね台帳の永続化インターフェース。
type LikeRepository interface {
	// Toggle は(userID, postID)のいいねを1トランザクションで反転し、
	// posts.likesを正確に±1する。投稿がない場合はPOST_NOT_FOUNDを返す。
	Toggle(ctx context.Context, userID, postID string) (*model.ToggleOutcome, error)

	// Exists は(userID, postID)のいいねが存在するかを返す。
	Exists(ctx context.Context, userID, postID string) (bool, error)

	// ListPostIDsByUser はユーザーがいいねしている投稿IDの一覧を返す。
	ListPostIDsByUser(ctx context.Context, userID string) ([]string, error)

	// ListDrift はposts.likesがlikes行数と一致しない投稿を返す。
	ListDrift(ctx context.Context) ([]CounterDrift, error)

	// Reconcile は全投稿のposts.likesをlikes行数から再計算し、修正した投稿数を返す。
	Reconcile(ctx context.Context) (int64, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// Create はコメントを作成する。投稿がない場合はPOST_NOT_FOUNDを返す。
	Create(ctx context.Context, comment *model.Comment) error

	// ListByPost は投稿のコメントをcreated_at昇順・id昇順で返す。
	ListByPost(ctx context.Context, postID string) ([]model.CommentView, error)
}

// CounterDrift はいいねカウンタと実際の行数のずれを表す。
type CounterDrift struct {
	PostID  string
	Counter int
	Actual  int
}
