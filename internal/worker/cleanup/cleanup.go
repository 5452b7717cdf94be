// Package cleanup はアカウントロックの期限切れ解除ジョブを提供する。
// ログイン時の判定はlockout_endの時刻比較で完結するため、このジョブは
// 期限切れのロック状態をusersテーブルから掃除する補助的な役割を持つ。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// MetricsRecorder は解除件数を記録するインターフェース。
type MetricsRecorder interface {
	RecordLockoutsCleared(count int)
}

const clearExpiredLockoutsQuery = `
	UPDATE users
	SET access_failed_count = 0, lockout_end = NULL, updated_at = now()
	WHERE lockout_end IS NOT NULL AND lockout_end < now()`

// LockoutCleanupJob は期限切れのアカウントロックを解除するジョブ。
// 冪等: 対象がない場合でもエラーにならない。
type LockoutCleanupJob struct {
	db      Executor
	logger  *slog.Logger
	metrics MetricsRecorder
}

// NewLockoutCleanupJob は新しいLockoutCleanupJobを生成する。metricsはnilでもよい。
func NewLockoutCleanupJob(db Executor, logger *slog.Logger, metrics MetricsRecorder) *LockoutCleanupJob {
	return &LockoutCleanupJob{
		db:      db,
		logger:  logger,
		metrics: metrics,
	}
}

// Run はlockout_endが過去のユーザーについて失敗回数とロック期限をリセットする。
func (j *LockoutCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, clearExpiredLockoutsQuery)
	if err != nil {
		j.logger.Error("ロック解除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("ロック解除の実行に失敗: %w", err)
	}

	cleared, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("解除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("解除件数の取得に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordLockoutsCleared(int(cleared))
	}

	j.logger.Info("ロック解除ジョブが完了しました",
		slog.Int64("cleared_count", cleared),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
