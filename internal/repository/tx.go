package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const (
	// maxTxAttempts はシリアライズ失敗・デッドロック時のトランザクション最大試行回数。
	maxTxAttempts = 3
	// txRetryBaseDelay は再試行時の初回待機時間。試行ごとに2倍にする。
	txRetryBaseDelay = 10 * time.Millisecond
)

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// runInTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、nilの場合はコミットする。
// シリアライズ失敗(40001)とデッドロック(40P01)はトランザクション全体を
// maxTxAttempts回まで再実行する。それ以外のエラーはそのまま返す。
func runInTx(ctx context.Context, db TxBeginner, fn func(tx *sql.Tx) error) error {
	delay := txRetryBaseDelay
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runOnce(ctx, db, fn)
		if err == nil || !isRetryable(err) {
			return err
		}

		slog.Warn("retrying transaction",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxTxAttempts, err)
}

func runOnce(ctx context.Context, db TxBeginner, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
