// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashとRefreshTokenはサーバー内でのみ扱い、レスポンスには含めない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	// RefreshToken は現在有効な唯一のリフレッシュトークン。空文字列はセッションなしを表す。
	RefreshToken          string
	RefreshTokenExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PublicUser はクライアントに返却してよいユーザー情報。
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public はUserから公開フィールドのみを取り出す。
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// HasActiveSession はリフレッシュトークンが保存されているかを返す。
func (u *User) HasActiveSession() bool {
	return u.RefreshToken != ""
}
