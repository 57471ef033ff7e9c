// Package feedback は認証済みユーザーのフィードバックを追記専用ログへ記録する。
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/citizenai/internal/metrics"
	"github.com/hitoshi/citizenai/internal/model"
	"github.com/hitoshi/citizenai/internal/repository"
)

// Sink はフィードバックログへの追記を行う。既存レコードの読み出しや書き換えは行わない。
type Sink struct {
	repo    repository.FeedbackRepository
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// NewSink はSinkを生成する。mcがnilの場合はメトリクスを記録しない。
func NewSink(repo repository.FeedbackRepository, mc metrics.MetricsCollector, logger *slog.Logger) *Sink {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Sink{
		repo:    repo,
		metrics: mc,
		logger:  logger,
		now:     time.Now,
	}
}

// Record はフィードバックを1件追記する。
// sentimentとconcernは内容を検証せずに保存し、未指定はJSON nullとして扱う。
// identityがnilの場合は何も書き込まずにUNAUTHENTICATEDを返す。
func (s *Sink) Record(ctx context.Context, identity *model.Identity, sentiment, concern json.RawMessage) (*model.FeedbackRecord, error) {
	if identity == nil {
		return nil, model.NewUnauthenticatedError()
	}

	record := &model.FeedbackRecord{
		ID:        uuid.NewString(),
		User:      identity.Email,
		Sentiment: nullIfEmpty(sentiment),
		Concern:   nullIfEmpty(concern),
		Timestamp: s.now().UTC(),
	}

	if err := s.repo.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append feedback: %w", err)
	}

	s.metrics.RecordFeedback()
	s.logger.Info("feedback recorded",
		slog.String("email", identity.Email),
		slog.String("feedback_id", record.ID),
	)
	return record, nil
}

func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
