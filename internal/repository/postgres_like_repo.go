package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/socialfeed/internal/model"
)

// PostgresLikeRepo はPostgreSQLを使用したいいね台帳リポジトリ。
type PostgresLikeRepo struct {
	db *sql.DB
}

// NewPostgresLikeRepo はPostgresLikeRepoを生成する。
func NewPostgresLikeRepo(db *sql.DB) *PostgresLikeRepo {
	return &PostgresLikeRepo{db: db}
}

// Toggle は(userID, postID)のいいねを反転する。
//
// 1トランザクション内で以下を行う:
//  1. 投稿行をFOR UPDATEでロックする（同一投稿へのトグルはここで直列化される）
//  2. いいね行の削除を試み、削除できれば Unliked
//  3. 削除対象がなければ ON CONFLICT DO NOTHING で挿入し、挿入できれば Liked
//  4. 挿入が一意制約に当たった場合は取り消しとして再試行する
//
// カウンタはいいね行数から再計算し、行の変更と同じトランザクションでコミットされる。
func (r *PostgresLikeRepo) Toggle(ctx context.Context, userID, postID string) (*model.ToggleOutcome, error) {
	var outcome *model.ToggleOutcome

	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		var likes int
		err := tx.QueryRowContext(ctx,
			`SELECT likes FROM posts WHERE id = $1 FOR UPDATE`,
			postID,
		).Scan(&likes)
		if errors.Is(err, sql.ErrNoRows) {
			return model.NewPostNotFoundError(postID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock post: %w", err)
		}

		removed, err := deleteLike(ctx, tx, userID, postID)
		if err != nil {
			return err
		}
		if removed {
			outcome, err = recountLikes(ctx, tx, postID, model.ToggleUnliked)
			return err
		}

		inserted, err := insertLike(ctx, tx, userID, postID)
		if err != nil {
			if fkErr := foreignKeyError(err, postID); fkErr != nil {
				return fkErr
			}
			return err
		}
		if inserted {
			outcome, err = recountLikes(ctx, tx, postID, model.ToggleLiked)
			return err
		}

		// 一意制約に当たった: 既存のいいねがあるので取り消しとして扱う
		removed, err = deleteLike(ctx, tx, userID, postID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("like for user %s on post %s changed concurrently", userID, postID)
		}
		outcome, err = recountLikes(ctx, tx, postID, model.ToggleUnliked)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func deleteLike(ctx context.Context, tx *sql.Tx, userID, postID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func insertLike(ctx context.Context, tx *sql.Tx, userID, postID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO likes (id, user_id, post_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT ON CONSTRAINT `+constraintLikesUserPost+` DO NOTHING`,
		uuid.New().String(), userID, postID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// recountLikes はカウンタをいいね行数で置き換える。
// 投稿行はロック済みなので、事前にずれていても負にならずここで修復される。
func recountLikes(ctx context.Context, tx *sql.Tx, postID string, result model.ToggleResult) (*model.ToggleOutcome, error) {
	var likes int
	err := tx.QueryRowContext(ctx,
		`UPDATE posts SET likes = (SELECT COUNT(*) FROM likes WHERE post_id = $1)
		 WHERE id = $1 RETURNING likes`,
		postID,
	).Scan(&likes)
	if err != nil {
		return nil, fmt.Errorf("failed to update like counter: %w", err)
	}
	return &model.ToggleOutcome{PostID: postID, Result: result, Likes: likes}, nil
}

// Exists は(userID, postID)のいいねが存在するかを返す。
func (r *PostgresLikeRepo) Exists(ctx context.Context, userID, postID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1 AND post_id = $2)`,
		userID, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return exists, nil
}

// ListPostIDsByUser はユーザーがいいねしている投稿IDの一覧を返す。
func (r *PostgresLikeRepo) ListPostIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT post_id FROM likes WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked posts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan liked post: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate liked posts: %w", err)
	}
	return ids, nil
}

// ListDrift はposts.likesがlikes行数と一致しない投稿を返す。
func (r *PostgresLikeRepo) ListDrift(ctx context.Context) ([]CounterDrift, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.likes, COUNT(l.id)::int
		 FROM posts p
		 LEFT JOIN likes l ON l.post_id = p.id
		 GROUP BY p.id, p.likes
		 HAVING p.likes <> COUNT(l.id)
		 ORDER BY p.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list counter drift: %w", err)
	}
	defer rows.Close()

	var drifts []CounterDrift
	for rows.Next() {
		var d CounterDrift
		if err := rows.Scan(&d.PostID, &d.Counter, &d.Actual); err != nil {
			return nil, fmt.Errorf("failed to scan counter drift: %w", err)
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counter drift: %w", err)
	}
	return drifts, nil
}

// Reconcile はずれている投稿のposts.likesをlikes行数で上書きする。
// 投稿ごとに行をロックしてから数え直すため、並行するトグルと競合しない。
func (r *PostgresLikeRepo) Reconcile(ctx context.Context) (int64, error) {
	drifts, err := r.ListDrift(ctx)
	if err != nil {
		return 0, err
	}

	var repaired int64
	for _, d := range drifts {
		fixed, err := r.reconcilePost(ctx, d.PostID)
		if err != nil {
			return repaired, err
		}
		if fixed {
			repaired++
		}
	}
	return repaired, nil
}

func (r *PostgresLikeRepo) reconcilePost(ctx context.Context, postID string) (bool, error) {
	var fixed bool
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		fixed = false

		var counter int
		err := tx.QueryRowContext(ctx,
			`SELECT likes FROM posts WHERE id = $1 FOR UPDATE`,
			postID,
		).Scan(&counter)
		if errors.Is(err, sql.ErrNoRows) {
			// 走査後に削除された
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock post: %w", err)
		}

		var actual int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM likes WHERE post_id = $1`,
			postID,
		).Scan(&actual); err != nil {
			return fmt.Errorf("failed to count likes: %w", err)
		}

		if counter == actual {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET likes = $2 WHERE id = $1`,
			postID, actual,
		); err != nil {
			return fmt.Errorf("failed to repair like counter: %w", err)
		}
		fixed = true
		return nil
	})
	return fixed, err
}

// compile-time interface check
var _ LikeRepository = (*PostgresLikeRepo)(nil)
