package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/citizenai/internal/model"
)

// PostgresFeedbackRepo はPostgreSQLを使用したフィードバックリポジトリ。
// INSERTのみを行い、UPDATE/DELETEは発行しない。
type PostgresFeedbackRepo struct {
	db *sql.DB
}

// NewPostgresFeedbackRepo はPostgresFeedbackRepoを生成する。
func NewPostgresFeedbackRepo(db *sql.DB) *PostgresFeedbackRepo {
	return &PostgresFeedbackRepo{db: db}
}

// Append はフィードバックを1件追加する。
func (r *PostgresFeedbackRepo) Append(ctx context.Context, record *model.FeedbackRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feedback (id, user_email, sentiment, concern, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.User, jsonbValue(record.Sentiment), jsonbValue(record.Concern), record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// jsonbValue は未指定の値をJSON nullとして書き込むための変換を行う。
func jsonbValue(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

// compile-time interface check
var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)
