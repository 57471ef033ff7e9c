package credential

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/citizenai/internal/model"
	"github.com/hitoshi/citizenai/internal/repository"
)

// mockUserRepo はUserRepositoryのテスト用モック
type mockUserRepo struct {
	findByEmailFn func(ctx context.Context, email string) (*model.UserRecord, error)
	createFn      func(ctx context.Context, user *model.UserRecord) error
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.UserRecord, error) {
	return m.findByEmailFn(ctx, email)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.UserRecord) error {
	return m.createFn(ctx, user)
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	svc := NewService(repository.NewJSONUserRepo(path), NewArgon2Hasher(testParams), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, path
}

func aliceInput() RegisterInput {
	return RegisterInput{Email: "alice@example.com", Password: "pw123", FirstName: "Alice", LastName: "A"}
}

func TestService_Register_Success(t *testing.T) {
	svc, _ := newTestService(t)
	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return fixed })

	user, err := svc.Register(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.PasswordHash == "pw123" || user.PasswordHash == "" {
		t.Errorf("PasswordHash must be a hash, got %q", user.PasswordHash)
	}
	if !user.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", user.CreatedAt, fixed)
	}
}

func TestService_Register_Twice_ReturnsAlreadyRegistered(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, aliceInput()); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}

	second := RegisterInput{Email: "alice@example.com", Password: "other", FirstName: "Eve", LastName: "E"}
	_, err := svc.Register(ctx, second)
	if !errors.Is(err, model.ErrAlreadyRegistered) {
		t.Fatalf("err = %v, want ALREADY_REGISTERED", err)
	}

	// 既存レコードは上書きされない
	user, err := svc.Verify(ctx, "alice@example.com", "pw123")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if user.FirstName != "Alice" {
		t.Errorf("FirstName = %q, want %q", user.FirstName, "Alice")
	}
}

func TestService_Register_SamePasswordDifferentHashes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "same", FirstName: "A", LastName: "A"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	b, err := svc.Register(ctx, RegisterInput{Email: "b@example.com", Password: "same", FirstName: "B", LastName: "B"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if a.PasswordHash == b.PasswordHash {
		t.Error("independent salts must produce different hashes")
	}
}

func TestService_Register_ConcurrentSameEmail_OnlyOneSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const workers = 8
	var succeeded atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, aliceInput())
			if err == nil {
				succeeded.Add(1)
				return
			}
			if !errors.Is(err, model.ErrAlreadyRegistered) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded.Load())
	}
}

func TestService_Register_RepoDuplicate_MapsToAlreadyRegistered(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.UserRecord, error) { return nil, nil },
		createFn:      func(ctx context.Context, user *model.UserRecord) error { return repository.ErrDuplicateEmail },
	}
	svc := NewService(repo, NewArgon2Hasher(testParams), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Register(context.Background(), aliceInput())
	if !errors.Is(err, model.ErrAlreadyRegistered) {
		t.Fatalf("err = %v, want ALREADY_REGISTERED", err)
	}
}

func TestService_Register_StoreFailure_IsReported(t *testing.T) {
	storeErr := errors.New("disk full")
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.UserRecord, error) { return nil, nil },
		createFn:      func(ctx context.Context, user *model.UserRecord) error { return storeErr },
	}
	svc := NewService(repo, NewArgon2Hasher(testParams), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Register(context.Background(), aliceInput())
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}

func TestService_Register_DoesNotLogPlaintext(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "users.json")
	svc := NewService(repository.NewJSONUserRepo(path), NewArgon2Hasher(testParams), slog.New(slog.NewJSONHandler(&buf, nil)))

	in := aliceInput()
	in.Password = "very-secret-password"
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if strings.Contains(buf.String(), "very-secret-password") {
		t.Error("plaintext password must never be logged")
	}
}

func TestService_Verify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, aliceInput()); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "正しいパスワード", email: "alice@example.com", password: "pw123"},
		{name: "誤ったパスワード", email: "alice@example.com", password: "pw123x", wantErr: model.ErrWrongPassword},
		{name: "未登録ユーザー", email: "nobody@x", password: "pw123", wantErr: model.ErrUserNotFound},
		{name: "大文字小文字違いのメール", email: "ALICE@example.com", password: "pw123", wantErr: model.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Verify(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify returned error: %v", err)
			}
			if user.FirstName != "Alice" || user.LastName != "A" {
				t.Errorf("name = %q %q, want Alice A", user.FirstName, user.LastName)
			}
		})
	}
}

func TestService_Find_InitializesStore(t *testing.T) {
	svc, path := newTestService(t)

	user, err := svc.Find(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if user != nil {
		t.Error("expected nil user on empty store")
	}
	if _, err := repository.NewJSONUserRepo(path).FindByEmail(context.Background(), "x"); err != nil {
		t.Errorf("store should be readable after init: %v", err)
	}
}
