package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Job は定期実行されるジョブ。
type Job interface {
	Run(ctx context.Context) error
}

// Scheduler はジョブを一定間隔で実行する。
type Scheduler struct {
	job      Job
	logger   *slog.Logger
	interval time.Duration
}

// NewScheduler はSchedulerを生成する。
// intervalが0以下の場合は1分を使用する。
func NewScheduler(job Job, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		job:      job,
		logger:   logger,
		interval: interval,
	}
}

// Start はティッカーでジョブを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまでブロックする。
// ジョブの失敗はログに記録して次回の実行を続ける。
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("ロック解除スケジューラを開始しました",
		slog.Duration("interval", s.interval),
	)

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ロック解除スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.job.Run(ctx); err != nil {
		s.logger.Error("ロック解除サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
