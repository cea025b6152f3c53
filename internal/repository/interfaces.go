// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/daycast/internal/model"
)

// ErrUserExists はユーザー名が既に登録されている場合に返される。
var ErrUserExists = errors.New("user already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。既に存在する場合はErrUserExistsを返す。
	// 予定の保存で自動作成された資格情報なしのユーザーにはパスワードを設定する。
	Create(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, username, passwordHash string) error
}

// EventRepository は予定データの永続化インターフェース。
type EventRepository interface {
	// ListByUser はユーザーの全予定を日付キーごとに挿入順で返す。
	// ユーザーが存在しない場合は空のマップを返す。
	ListByUser(ctx context.Context, username string) (model.EventMap, error)

	// ReplaceForUser はユーザーの予定をすべて削除してから再挿入する。
	// ユーザーが存在しない場合は資格情報なしで作成する。全体を1トランザクションで行う。
	ReplaceForUser(ctx context.Context, username string, events model.EventMap) error
}
