package repository

import (
	"errors"

	"github.com/lib/pq"

	"github.com/hitoshi/socialfeed/internal/model"
)

// PostgreSQLのSQLSTATEコード
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// 制約名（migrations/000001_init.up.sql と一致させること）
const (
	constraintUsersUsername = "users_username_key"
	constraintUsersEmail    = "users_email_key"
	constraintLikesUserPost = "likes_user_id_post_id_key"

	constraintPostsAuthor    = "posts_author_id_fkey"
	constraintLikesUser      = "likes_user_id_fkey"
	constraintLikesPost      = "likes_post_id_fkey"
	constraintCommentsAuthor = "comments_author_id_fkey"
	constraintCommentsPost   = "comments_post_id_fkey"
)

// pqError はerrのチェーンから*pq.Errorを取り出す。
func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

// isUniqueViolation はerrが一意制約違反かどうかを判定する。
// constraintが空でなければ制約名も一致する場合のみtrueを返す。
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := pqError(err)
	if !ok || string(pqErr.Code) != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// foreignKeyError は外部キー違反を参照先に応じたAPIErrorに変換する。
// 投稿への参照はPOST_NOT_FOUND、ユーザーへの参照はUSER_NOT_FOUND。
// 外部キー違反でない場合と未知の制約の場合はnilを返す。
func foreignKeyError(err error, postID string) error {
	pqErr, ok := pqError(err)
	if !ok || string(pqErr.Code) != pgForeignKeyViolation {
		return nil
	}
	switch pqErr.Constraint {
	case constraintLikesPost, constraintCommentsPost:
		return model.NewPostNotFoundError(postID)
	case constraintLikesUser, constraintCommentsAuthor, constraintPostsAuthor:
		return model.NewUserNotFoundError()
	default:
		return nil
	}
}

// isRetryable はトランザクション全体を再実行すれば成功しうるエラーかどうかを判定する。
func isRetryable(err error) bool {
	pqErr, ok := pqError(err)
	if !ok {
		return false
	}
	switch string(pqErr.Code) {
	case pgSerializationFailure, pgDeadlockDetected:
		return true
	default:
		return false
	}
}
