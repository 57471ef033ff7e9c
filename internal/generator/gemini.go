// Package generator はチャット応答を生成する外部バックエンドのアダプターを提供する。
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// ErrEmptyResponse はバックエンドが応答テキストを返さなかった場合のエラー。
var ErrEmptyResponse = errors.New("generator returned no text")

// GeminiConfig はGeminiバックエンドの設定。
type GeminiConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	TopP         float64
	Timeout      time.Duration // 1回の生成の上限時間（0の場合は無制限）
}

// contentGenerator はgenai.Modelsのうち使用するメソッドのみを定義する。
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini はGoogle Gemini APIで応答を生成する。
type Gemini struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	config  *genai.GenerateContentConfig
}

// NewGemini はGeminiクライアントを生成する。
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newGemini(client.Models, cfg), nil
}

func newGemini(models contentGenerator, cfg GeminiConfig) *Gemini {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash-001"
	}

	temperature := float32(cfg.Temperature)
	topP := float32(cfg.TopP)
	genCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		MaxOutputTokens: int32(cfg.MaxTokens),
	}
	if cfg.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}

	return &Gemini{
		models:  models,
		model:   model,
		timeout: cfg.Timeout,
		config:  genCfg,
	}
}

// Generate はpromptに対する応答テキストを返す。
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	// 安全フィルタや上限到達で中断された候補はテキストを持たない
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: finish reason %q", ErrEmptyResponse, resp.Candidates[0].FinishReason)
	}

	return text, nil
}

// Name はバックエンド名を返す。
func (g *Gemini) Name() string {
	return "gemini:" + g.model
}
