package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/citizenai/internal/model"
)

// JSONUserRepo は全ユーザーを1つのJSONファイルに保持するユーザーリポジトリ。
// 検索のたびにファイル全体を読み込み、登録のたびにファイル全体を書き直す。
// 読み込みは共有ロック、存在確認から書き込みまでは排他ロックの中で行う。
type JSONUserRepo struct {
	path        string
	mu          sync.RWMutex
	initialized atomic.Bool
}

// NewJSONUserRepo はJSONUserRepoを生成する。ファイルは初回アクセス時に作成する。
func NewJSONUserRepo(path string) *JSONUserRepo {
	return &JSONUserRepo{path: path}
}

// FindByEmail はメールアドレスの完全一致でユーザーを取得する。見つからない場合はnilを返す。
func (r *JSONUserRepo) FindByEmail(ctx context.Context, email string) (*model.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.ensureStore(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	users, err := r.readAll()
	if err != nil {
		return nil, err
	}
	return findByEmail(users, email), nil
}

// Create はユーザーを追加し、ファイル全体を書き直す。
// 既に同じメールアドレスが存在する場合はErrDuplicateEmailを返す。
func (r *JSONUserRepo) Create(ctx context.Context, user *model.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.ensureStore(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.readAll()
	if err != nil {
		return err
	}
	if findByEmail(users, user.Email) != nil {
		return ErrDuplicateEmail
	}

	users = append(users, *user)
	if err := r.writeAll(users); err != nil {
		return err
	}
	return nil
}

// ensureStore はファイルが存在しない場合に空のストアを1回だけ作成する。
func (r *JSONUserRepo) ensureStore() error {
	if r.initialized.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// ダブルチェック
	if r.initialized.Load() {
		return nil
	}

	_, err := os.Stat(r.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := r.writeAll([]model.UserRecord{}); err != nil {
			return fmt.Errorf("failed to initialize user store: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to stat user store: %w", err)
	}

	r.initialized.Store(true)
	return nil
}

// readAll はファイル全体を読み込む。呼び出し側でロックを保持すること。
func (r *JSONUserRepo) readAll() ([]model.UserRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user store: %w", err)
	}

	var users []model.UserRecord
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to decode user store: %w", err)
	}
	return users, nil
}

// writeAll は一時ファイルに書き出してからrenameで置き換える。
// 途中で失敗しても既存ファイルは壊れない。呼び出し側で排他ロックを保持すること。
func (r *JSONUserRepo) writeAll(users []model.UserRecord) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user store: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create user store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write user store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync user store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close user store: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to set user store permissions: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace user store: %w", err)
	}
	return nil
}

func findByEmail(users []model.UserRecord, email string) *model.UserRecord {
	for i := range users {
		if users[i].Email == email {
			u := users[i]
			return &u
		}
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*JSONUserRepo)(nil)
