// Package model はドメインモデルを定義する。
package model

import "time"

// UserRecord はCredentialStoreが保持するユーザーレコードを表す。
// Emailは一意キーで、大文字小文字を区別した完全一致で比較する。
// CreatedAtは作成時に1回だけ設定され、以後変更しない。
type UserRecord struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"password"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity はセッションが表明する認証済みユーザーの識別情報。
// パスワードやハッシュは含めない。
type Identity struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Identity はUserRecordからセッションに載せる識別情報を取り出す。
func (u *UserRecord) Identity() Identity {
	return Identity{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Session はサーバー側で保持するログインセッションを表す。
// プロセス再起動をまたいで永続化しない。
type Session struct {
	ID        string
	Identity  Identity
	ExpiresAt time.Time
	CreatedAt time.Time
}
