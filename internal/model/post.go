// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/google/uuid"
)

// Post はユーザーが投稿した短文を表す。
// Likesはlikesテーブルの行数の非正規化キャッシュであり、
// コミット後は常に count(likes WHERE post_id = ID) と一致する。
type Post struct {
	ID        string
	AuthorID  string
	Content   string
	Likes     int
	CreatedAt time.Time
}

// PostView は閲覧者から見た投稿を表す。
// 作者名、閲覧者のいいね状態、コメント数を含む。
type PostView struct {
	Post
	AuthorUsername string
	LikedByViewer  bool
	CommentCount   int
}

// Like はユーザーと投稿の組に対するいいねを表す。
// (UserID, PostID) の組は一意。
type Like struct {
	ID        string
	UserID    string
	PostID    string
	CreatedAt time.Time
}

// ToggleResult はいいねトグルの結果を表す。
type ToggleResult string

const (
	// ToggleLiked は新たにいいねしたことを示す。
	ToggleLiked ToggleResult = "liked"
	// ToggleUnliked はいいねを取り消したことを示す。
	ToggleUnliked ToggleResult = "unliked"
)

// ToggleOutcome はトグル結果とトグル後のいいね数を保持する。
type ToggleOutcome struct {
	PostID string
	Result ToggleResult
	Likes  int
}

// Comment は投稿に対するコメントを表す。
// 親投稿の削除時にのみ削除される。
type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// CommentView はコメントに作者名を付与したもの。
type CommentView struct {
	Comment
	AuthorUsername string
}

// Cursor はcreated_at降順・id降順のキーセットページネーション位置を表す。
// ゼロ値は先頭を示す。
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero はカーソルが先頭を示すかどうかを返す。
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// ValidID はidがエンティティIDとして有効なUUIDかどうかを返す。
// UUID列との比較前に検査し、不正なIDは該当なしとして扱う。
// 標準の36文字表記のみを受け付ける。
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
