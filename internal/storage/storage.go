// Package storage はクライアントの永続化アダプターを提供する。
// ローカルモードはSQLiteのスロット、リモートモードはアカウント・予定サービスに保存する。
package storage

import (
	"context"
	"errors"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/model"
)

// Mode は永続化モード。
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// ErrUnavailable はリモートサービスに到達できない、または5xxや不正な応答を返したことを表す。
// 呼び出し側はこのエラーの場合のみローカルの資格情報にフォールバックする。
var ErrUnavailable = errors.New("remote service unavailable")

// ErrLoadFailed は保存済みの予定を読み込めなかったことを表す。
// このエラーの後にストアの内容で保存し直すと、保存先の予定が失われる。
var ErrLoadFailed = errors.New("events could not be loaded")

// スロット名。
const (
	SlotUsers        = "daycast.users"
	SlotEventsPrefix = "daycast.events."
	SlotSession      = "daycast.session"
	SlotTheme        = "daycast.theme"
)

// EventsSlot はユーザーの予定を保存するスロット名を返す。
func EventsSlot(username string) string {
	return SlotEventsPrefix + username
}

// Adapter はモードに依存しない永続化インターフェース。
type Adapter interface {
	Mode() Mode

	// LoadUsers はローカルの資格情報マップを返す。リモートモードでは空のマップを返す。
	LoadUsers(ctx context.Context) (map[string]model.UserRecord, error)

	// SaveUsers は資格情報マップを保存する。リモートモードでは何もしない。
	SaveUsers(ctx context.Context, users map[string]model.UserRecord) error

	// LoadEvents は保存済みの予定をstoreに統合する。データがない場合はエラーにしない。
	// 読み込みに失敗した場合はstoreを変更せず、ErrLoadFailedをラップしたエラーを返す。
	LoadEvents(ctx context.Context, username string, store *calendar.Store) error

	// SaveEvents はユーザーの全予定を保存する。
	SaveEvents(ctx context.Context, username string, events model.EventMap) error
}
