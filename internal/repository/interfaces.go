// Package repository はデータ永続化のインターフェースとその実装を提供する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/citizenai/internal/model"
)

// ErrDuplicateEmail は同じメールアドレスのユーザーが既に存在する場合に返る。
var ErrDuplicateEmail = errors.New("user with this email already exists")

// UserRepository はユーザーレコードの永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスの完全一致でユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.UserRecord, error)

	// Create はユーザーを追加する。
	// 存在確認と追加は不可分に行い、既存の場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.UserRecord) error
}

// FeedbackRepository はフィードバックログへの追記インターフェース。
// 既存レコードの読み出し・書き換え・削除は提供しない。
type FeedbackRepository interface {
	// Append はレコードを末尾に追記する。永続化が完了してから返る。
	Append(ctx context.Context, record *model.FeedbackRecord) error
}

// SessionRepository はセッションの保持インターフェース。
type SessionRepository interface {
	// Create はセッションを保存する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired はnow時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
