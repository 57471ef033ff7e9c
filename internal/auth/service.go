// Package auth は登録・ログイン・ログアウトのフローとセッション発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/citizenai/internal/credential"
	"github.com/hitoshi/citizenai/internal/metrics"
	"github.com/hitoshi/citizenai/internal/model"
)

// CredentialStore はユーザー資格情報の登録と照合のインターフェース。
// credential.Serviceが実装する。
type CredentialStore interface {
	Register(ctx context.Context, in credential.RegisterInput) (*model.UserRecord, error)
	Verify(ctx context.Context, email, password string) (*model.UserRecord, error)
}

// SessionManager はセッションの発行・参照・破棄のインターフェース。
// session.Managerが実装する。
type SessionManager interface {
	Start(ctx context.Context, identity model.Identity) (*model.Session, error)
	Current(ctx context.Context, sessionID string) (*model.Identity, error)
	End(ctx context.Context, sessionID string) error
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	credentials CredentialStore
	sessions    SessionManager
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(credentials CredentialStore, sessions SessionManager, mc metrics.MetricsCollector, logger *slog.Logger) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		credentials: credentials,
		sessions:    sessions,
		metrics:     mc,
		logger:      logger,
	}
}

// Register はユーザーを登録し、新しいセッションを発行する。
// currentSessionIDが指定されている場合、登録成功時にそのセッションを終了する。
func (s *Service) Register(ctx context.Context, currentSessionID string, in credential.RegisterInput) (*model.Session, error) {
	user, err := s.credentials.Register(ctx, in)
	if err != nil {
		s.metrics.RecordRegistration(outcomeOf(err))
		return nil, err
	}
	s.metrics.RecordRegistration(metrics.OutcomeSuccess)

	return s.switchSession(ctx, currentSessionID, user)
}

// Login はメールアドレスとパスワードを照合し、新しいセッションを発行する。
// 照合に失敗した場合、既存のセッションはそのまま維持する。
func (s *Service) Login(ctx context.Context, currentSessionID, email, password string) (*model.Session, error) {
	user, err := s.credentials.Verify(ctx, email, password)
	if err != nil {
		s.metrics.RecordLogin(outcomeOf(err))
		if errors.Is(err, model.ErrUserNotFound) || errors.Is(err, model.ErrWrongPassword) {
			s.logger.Info("login rejected",
				slog.String("email", email),
				slog.String("reason", outcomeOf(err)),
			)
		}
		return nil, err
	}
	s.metrics.RecordLogin(metrics.OutcomeSuccess)

	session, err := s.switchSession(ctx, currentSessionID, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("email", user.Email))
	return session, nil
}

// Logout はセッションを破棄する。未ログインでも成功する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	identity, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to resolve session: %w", err)
	}

	if err := s.sessions.End(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	if identity != nil {
		s.logger.Info("user logged out", slog.String("email", identity.Email))
	}
	return nil
}

// CurrentIdentity はセッションIDに対応する識別情報を返す。匿名の場合はnilを返す。
func (s *Service) CurrentIdentity(ctx context.Context, sessionID string) (*model.Identity, error) {
	identity, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return identity, nil
}

// switchSession は既存セッションを終了し、userの新しいセッションを発行する。
func (s *Service) switchSession(ctx context.Context, currentSessionID string, user *model.UserRecord) (*model.Session, error) {
	if err := s.sessions.End(ctx, currentSessionID); err != nil {
		return nil, fmt.Errorf("failed to end previous session: %w", err)
	}

	session, err := s.sessions.Start(ctx, user.Identity())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// outcomeOf はエラーをメトリクスの結果ラベルに変換する。
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, model.ErrAlreadyRegistered):
		return metrics.OutcomeAlreadyRegistered
	case errors.Is(err, model.ErrUserNotFound):
		return metrics.OutcomeUserNotFound
	case errors.Is(err, model.ErrWrongPassword):
		return metrics.OutcomeWrongPassword
	default:
		return metrics.OutcomeError
	}
}
