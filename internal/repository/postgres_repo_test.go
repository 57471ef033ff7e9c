package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hitoshi/citizenai/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresFeedbackRepoはFeedbackRepositoryインターフェースを満たすことを検証
func TestPostgresFeedbackRepo_ImplementsInterface(t *testing.T) {
	var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)
}

func TestJSONBValue_EmptyIsNull(t *testing.T) {
	if got := jsonbValue(nil); got != "null" {
		t.Errorf("jsonbValue(nil) = %q, want %q", got, "null")
	}
	if got := jsonbValue([]byte(`"ok"`)); got != `"ok"` {
		t.Errorf("jsonbValue = %q, want %q", got, `"ok"`)
	}
}

// openTestDB はTEST_DATABASE_URLのDBに接続し、テスト用のテーブルを用意する。
// 接続できない場合はテストをスキップする。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	schema := `
		DROP TABLE IF EXISTS feedback;
		DROP TABLE IF EXISTS users;
		CREATE TABLE users (
			email         TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			first_name    TEXT NOT NULL,
			last_name     TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE feedback (
			id         UUID PRIMARY KEY,
			user_email TEXT NOT NULL,
			sentiment  JSONB,
			concern    JSONB,
			created_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("スキーマ作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresUserRepo_CreateAndFind(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	want := &model.UserRecord{
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		FirstName:    "Alice",
		LastName:     "A",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := repo.Create(ctx, want); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := repo.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if got == nil || got.PasswordHash != want.PasswordHash || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := repo.Create(ctx, want); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestPostgresFeedbackRepo_Append(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresFeedbackRepo(db)

	rec := &model.FeedbackRecord{
		ID:        uuid.NewString(),
		User:      "alice@example.com",
		Sentiment: json.RawMessage(`"positive"`),
		Timestamp: time.Now(),
	}
	if err := repo.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM feedback WHERE concern = 'null'::jsonb`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
