package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/socialfeed/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// selectPostViews は投稿を閲覧者視点で取得するSELECT句。
// $1は閲覧者ID（NULL可）。1文で取得するため、いいね数といいね状態は同一スナップショットになる。
const selectPostViews = `
	SELECT p.id, p.author_id, p.content, p.likes, p.created_at,
	       u.username,
	       EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = $1) AS liked,
	       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count
	FROM posts p
	JOIN users u ON u.id = p.author_id`

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, content, likes, created_at)
		 VALUES ($1, $2, $3, 0, $4)`,
		post.ID, post.AuthorID, post.Content, post.CreatedAt,
	)
	if err != nil {
		if fkErr := foreignKeyError(err, post.ID); fkErr != nil {
			return fkErr
		}
		return fmt.Errorf("failed to insert post: %w", err)
	}
	post.Likes = 0
	return nil
}

// FindByID は指定IDの投稿を閲覧者視点で取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id, viewerID string) (*model.PostView, error) {
	row := r.db.QueryRowContext(ctx,
		selectPostViews+` WHERE p.id = $2`,
		nullableID(viewerID), id,
	)

	view, err := scanPostView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return view, nil
}

// ListRecent は全投稿をcreated_at降順・id降順で取得する。
func (r *PostgresPostRepo) ListRecent(ctx context.Context, viewerID string, cursor model.Cursor, limit int) ([]model.PostView, error) {
	createdAt, id := cursorArgs(cursor)
	rows, err := r.db.QueryContext(ctx,
		selectPostViews+`
		WHERE ($2::timestamptz IS NULL OR (p.created_at, p.id) < ($2::timestamptz, $3::uuid))
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $4`,
		nullableID(viewerID), createdAt, id, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent posts: %w", err)
	}
	return collectPostViews(rows)
}

// ListByAuthor は指定ユーザーの投稿をcreated_at降順・id降順で取得する。
func (r *PostgresPostRepo) ListByAuthor(ctx context.Context, authorID, viewerID string, cursor model.Cursor, limit int) ([]model.PostView, error) {
	createdAt, id := cursorArgs(cursor)
	rows, err := r.db.QueryContext(ctx,
		selectPostViews+`
		WHERE p.author_id = $2
		  AND ($3::timestamptz IS NULL OR (p.created_at, p.id) < ($3::timestamptz, $4::uuid))
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $5`,
		nullableID(viewerID), authorID, createdAt, id, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author: %w", err)
	}
	return collectPostViews(rows)
}

// DeleteOwned は投稿を作者の場合のみ削除する。
// 投稿行をFOR UPDATEでロックしてから、コメント・いいね・投稿の順に削除する。
// ロック中の投稿へのいいね・コメントは待機し、コミット後にPOST_NOT_FOUNDとなる。
func (r *PostgresPostRepo) DeleteOwned(ctx context.Context, requesterID, postID string) error {
	return runInTx(ctx, r.db, func(tx *sql.Tx) error {
		var authorID string
		err := tx.QueryRowContext(ctx,
			`SELECT author_id FROM posts WHERE id = $1 FOR UPDATE`,
			postID,
		).Scan(&authorID)
		if errors.Is(err, sql.ErrNoRows) {
			return model.NewPostNotFoundError(postID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock post: %w", err)
		}

		if authorID != requesterID {
			return model.NewForbiddenError()
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = $1`, postID); err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE post_id = $1`, postID); err != nil {
			return fmt.Errorf("failed to delete likes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, postID); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		return nil
	})
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostView(s rowScanner) (*model.PostView, error) {
	v := &model.PostView{}
	err := s.Scan(
		&v.ID, &v.AuthorID, &v.Content, &v.Likes, &v.CreatedAt,
		&v.AuthorUsername, &v.LikedByViewer, &v.CommentCount,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func collectPostViews(rows *sql.Rows) ([]model.PostView, error) {
	defer rows.Close()

	var views []model.PostView
	for rows.Next() {
		v, err := scanPostView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}
	return views, nil
}

// cursorArgs はカーソルをSQLパラメータに変換する。ゼロ値のカーソルはNULLになる。
func cursorArgs(c model.Cursor) (any, any) {
	if c.IsZero() {
		return nil, nil
	}
	return c.CreatedAt, c.ID
}

// nullableID は空文字列をNULLに変換する。
// UUID列と空文字列を比較するとキャストエラーになるため。
func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
