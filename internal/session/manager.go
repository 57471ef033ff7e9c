// Package session はサーバー側で保持するログインセッションのライフサイクルを管理する。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/citizenai/internal/model"
	"github.com/hitoshi/citizenai/internal/repository"
)

// Config はセッション管理の設定。
type Config struct {
	MaxAge time.Duration // セッション有効期間
}

// Manager はセッションの発行・参照・破棄を行う。
// 識別情報はリクエストごとにセッションIDから解決し、グローバルな状態を持たない。
type Manager struct {
	repo   repository.SessionRepository
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewManager はManagerを生成する。
func NewManager(repo repository.SessionRepository, config Config, logger *slog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Start は識別情報を保持する新しいセッションを発行する。
// セッションには email, first_name, last_name のみを保存する。
func (m *Manager) Start(ctx context.Context, identity model.Identity) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	s := &model.Session{
		ID: id,
		Identity: model.Identity{
			Email:     identity.Email,
			FirstName: identity.FirstName,
			LastName:  identity.LastName,
		},
		ExpiresAt: now.Add(m.config.MaxAge),
		CreatedAt: now,
	}

	if err := m.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return s, nil
}

// Current はセッションIDに対応する識別情報を返す。
// IDが空、未知、または期限切れの場合はnilを返す（匿名）。
func (m *Manager) Current(ctx context.Context, sessionID string) (*model.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}

	s, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if s == nil {
		return nil, nil
	}

	identity := s.Identity
	return &identity, nil
}

// End はセッションを破棄する。存在しないIDに対しても成功する。
func (m *Manager) End(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := m.repo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Sweep は期限切れのセッションを削除し、削除件数を返す。
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	deleted, err := m.repo.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	if deleted > 0 {
		m.logger.Info("expired sessions removed", slog.Int("count", deleted))
	}
	return deleted, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
