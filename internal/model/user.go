// Package model はドメインモデルを定義する。
package model

import "time"

// MaxUsernameLength はusersテーブルのusername列に収まる最大文字数。
const MaxUsernameLength = 255

// User はアカウントサービスに登録されたユーザーを表す。
// PasswordHashはbcryptハッシュ。予定の保存時に自動作成されたユーザーは空文字列となる。
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasCredential はログイン可能な資格情報を持つかどうかを返す。
func (u *User) HasCredential() bool {
	return u.PasswordHash != ""
}

// UserRecord はクライアントのローカルモードで保持する資格情報。
// Passwordはbcryptハッシュで、平文は保存しない。
type UserRecord struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
