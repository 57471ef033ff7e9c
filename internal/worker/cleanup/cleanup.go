// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッションはプロセス内に保持するため、ジョブはAPIサーバーと同じプロセスで動かす。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/citizenai/internal/metrics"
)

// Sweeper は期限切れセッションを削除し、削除件数を返すインターフェース。
// session.Managerが実装する。
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// CleanupJob は期限切れセッションの定期削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	sweeper  Sweeper
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 10分）
}

// NewCleanupJob は新しいCleanupJobを生成する。mcがnilの場合はメトリクスを記録しない。
func NewCleanupJob(sweeper Sweeper, mc metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CleanupJob{
		sweeper:  sweeper,
		metrics:  mc,
		logger:   logger,
		Interval: 10 * time.Minute,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sweeper.Sweep(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordSessionsSwept(deleted)

	j.logger.Info("セッションクリーンアップが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はInterval間隔でRunを繰り返す。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			// 失敗はRun内でログ出力済みのため次の周期に進む
			_ = j.Run(ctx)
		}
	}
}
