// Package chat は認証済みユーザーのメッセージを応答生成バックエンドへ中継する。
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/citizenai/internal/metrics"
	"github.com/hitoshi/citizenai/internal/model"
)

// Generator はプロンプトから応答テキストを生成する外部バックエンド。
// 呼び出しは長時間ブロックすることがある。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gateway はチャットメッセージの送信を処理する。会話履歴は保持しない。
type Gateway struct {
	generator Generator
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewGateway はGatewayを生成する。mcがnilの場合はメトリクスを記録しない。
func NewGateway(generator Generator, mc metrics.MetricsCollector, logger *slog.Logger) *Gateway {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Gateway{
		generator: generator,
		metrics:   mc,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit はメッセージを前後の空白を除いてGeneratorへ渡し、応答をそのまま返す。
// identityがnilの場合は何も呼び出さずにUNAUTHENTICATEDを返す。
func (g *Gateway) Submit(ctx context.Context, identity *model.Identity, rawMessage string) (string, error) {
	if identity == nil {
		return "", model.NewUnauthenticatedError()
	}

	message := strings.TrimSpace(rawMessage)
	if message == "" {
		return "", model.NewEmptyMessageError()
	}

	start := g.now()
	reply, err := g.generator.Generate(ctx, message)
	g.metrics.RecordChatLatency(g.now().Sub(start))
	if err != nil {
		g.metrics.RecordGenerationFailure()
		g.logger.Error("failed to generate reply",
			slog.String("email", identity.Email),
			slog.String("error", err.Error()),
		)
		return "", model.NewGenerationFailedError()
	}

	return reply, nil
}
