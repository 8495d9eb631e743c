// Package cleanup は期限切れリフレッシュトークンの定期消去ジョブを提供する。
// 期限切れのトークンはRefreshで拒否されるが、保存値を残さないよう定期的に消去する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/taskman/internal/metrics"
)

// DefaultInterval はジョブの実行間隔のデフォルト値。
const DefaultInterval = time.Hour

// TokenStore は期限切れリフレッシュトークンの消去を抽象化するインターフェース。
// repository.UserRepositoryが満たす。
type TokenStore interface {
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// RefreshTokenCleanupJob は期限切れのリフレッシュトークンを消去するジョブ。
// 消去対象がない場合も成功として扱うため、何度実行してもよい。
type RefreshTokenCleanupJob struct {
	store   TokenStore
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewRefreshTokenCleanupJob は新しいRefreshTokenCleanupJobを生成する。
func NewRefreshTokenCleanupJob(store TokenStore, logger *slog.Logger, mc metrics.MetricsCollector) *RefreshTokenCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &RefreshTokenCleanupJob{
		store:   store,
		logger:  logger,
		metrics: mc,
		now:     time.Now,
	}
}

// Run は現在時刻より前に期限切れとなったリフレッシュトークンを消去する。
func (j *RefreshTokenCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cleared, err := j.store.ClearExpiredRefreshTokens(ctx, j.now().UTC())
	if err != nil {
		j.logger.Error("リフレッシュトークンのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("リフレッシュトークンのクリーンアップに失敗: %w", err)
	}

	j.metrics.RecordRefreshTokensCleared(cleared)
	j.logger.Info("リフレッシュトークンのクリーンアップが完了しました",
		slog.Int64("cleared_count", cleared),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降interval間隔でRunを繰り返す。
// コンテキストがキャンセルされるまでブロックする。
func (j *RefreshTokenCleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました", slog.Duration("interval", interval))

	// エラーはRun内でログ済み。次回の実行は継続する
	_ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
