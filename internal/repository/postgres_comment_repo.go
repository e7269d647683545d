package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/socialfeed/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// Create はコメントを作成する。
// 投稿行をFOR SHAREでロックするため、削除中の投稿へのコメントは削除のコミットを待ってPOST_NOT_FOUNDとなる。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	return runInTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM posts WHERE id = $1 FOR SHARE`,
			comment.PostID,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return model.NewPostNotFoundError(comment.PostID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock post: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO comments (id, post_id, author_id, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			comment.ID, comment.PostID, comment.AuthorID, comment.Content, comment.CreatedAt,
		)
		if err != nil {
			if fkErr := foreignKeyError(err, comment.PostID); fkErr != nil {
				return fkErr
			}
			return fmt.Errorf("failed to insert comment: %w", err)
		}
		return nil
	})
}

// ListByPost は投稿のコメントをcreated_at昇順・id昇順で返す。
func (r *PostgresCommentRepo) ListByPost(ctx context.Context, postID string) ([]model.CommentView, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.author_id, c.content, c.created_at, u.username
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at ASC, c.id ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []model.CommentView
	for rows.Next() {
		var c model.CommentView
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.AuthorUsername); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comment rows: %w", err)
	}
	return comments, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
