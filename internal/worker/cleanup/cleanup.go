// Package cleanup は期限切れ資格情報の自動削除ジョブを提供する。
// 期限切れ・失効済みのリフレッシュトークンと期限切れセッションを
// 定期バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/authgate/internal/repository"
)

// CleanupMetrics はクリーンアップ結果のメトリクス記録に必要なインターフェース。
type CleanupMetrics interface {
	RecordCleanupDeletions(target string, count int64)
}

// CleanupJob は期限切れ資格情報の自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	tokenRepo   repository.RefreshTokenRepository
	sessionRepo repository.SessionRepository
	metrics     CleanupMetrics
	logger      *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(tokenRepo repository.RefreshTokenRepository, sessionRepo repository.SessionRepository, metrics CleanupMetrics, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		tokenRepo:   tokenRepo,
		sessionRepo: sessionRepo,
		metrics:     metrics,
		logger:      logger,
	}
}

// Run は期限切れ・失効済みのリフレッシュトークンと期限切れセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
// トークン削除が失敗してもセッション削除は試行し、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	var firstErr error

	tokensDeleted, err := j.tokenRepo.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("failed to delete expired refresh tokens",
			slog.String("error", err.Error()),
		)
		firstErr = fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	} else {
		j.metrics.RecordCleanupDeletions("refresh_tokens", tokensDeleted)
	}

	sessionsDeleted, err := j.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("failed to delete expired sessions",
			slog.String("error", err.Error()),
		)
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to delete expired sessions: %w", err)
		}
	} else {
		j.metrics.RecordCleanupDeletions("sessions", sessionsDeleted)
	}

	if firstErr != nil {
		return firstErr
	}

	duration := time.Since(start)
	j.logger.Info("cleanup job completed",
		slog.Int64("tokens_deleted", tokensDeleted),
		slog.Int64("sessions_deleted", sessionsDeleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunPeriodic は指定間隔でRunを繰り返し実行する。
// コンテキストのキャンセルで停止する。起動直後に1回実行する。
func (j *CleanupJob) RunPeriodic(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup run failed", slog.String("error", err.Error()))
			}
		}
	}
}
