package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hitoshi/citizenai/internal/model"
)

// JSONLFeedbackRepo はフィードバックを1行1レコードのJSONで追記するリポジトリ。
// 書き込みはO_APPENDで行い、既存の行を書き換えない。
type JSONLFeedbackRepo struct {
	path string
	mu   sync.Mutex
}

// NewJSONLFeedbackRepo はJSONLFeedbackRepoを生成する。
func NewJSONLFeedbackRepo(path string) *JSONLFeedbackRepo {
	return &JSONLFeedbackRepo{path: path}
}

// Append はレコードを1行として追記し、fsyncしてから返る。
func (r *JSONLFeedbackRepo) Append(ctx context.Context, record *model.FeedbackRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create feedback log directory: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open feedback log: %w", err)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append feedback: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync feedback log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close feedback log: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FeedbackRepository = (*JSONLFeedbackRepo)(nil)
