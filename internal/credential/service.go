// Package credential はユーザー資格情報の登録・照合を提供する。
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/citizenai/internal/model"
	"github.com/hitoshi/citizenai/internal/repository"
)

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service はユーザーストアに対する登録・照合を行う。
// ユーザーストアへのアクセスはこのサービスを経由する。
type Service struct {
	users  repository.UserRepository
	hasher Hasher
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, hasher Hasher, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock はcreated_atに使う時刻関数を差し替える。
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Find はメールアドレスの完全一致でユーザーを取得する。存在しない場合はnilを返す。
func (s *Service) Find(ctx context.Context, email string) (*model.UserRecord, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Register はユーザーを登録する。
// 登録済みの場合はALREADY_REGISTEREDを返す。存在確認と追加はリポジトリ内で不可分に行う。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.UserRecord, error) {
	existing, err := s.Find(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewAlreadyRegisteredError()
	}

	// ハッシュ計算はストアのロック外で行う
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.UserRecord{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewAlreadyRegisteredError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", slog.String("email", user.Email))
	return user, nil
}

// Verify はメールアドレスとパスワードを照合し、一致した場合はユーザーレコードを返す。
func (s *Service) Verify(ctx context.Context, email, password string) (*model.UserRecord, error) {
	user, err := s.Find(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		s.logger.Error("stored password hash is unreadable",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}
	if !ok {
		return nil, model.NewWrongPasswordError()
	}

	return user, nil
}
