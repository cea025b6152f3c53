package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/model"
)

// RemoteAdapter は予定をアカウント・予定サービスに保存するアダプター。
// 保存の失敗はログに記録して握りつぶし、メモリ上のストアを正とする。
type RemoteAdapter struct {
	client       *AccountClient
	logger       *slog.Logger
	saveFailures atomic.Int64
	loadFailures atomic.Int64
}

// NewRemoteAdapter はRemoteAdapterを生成する。
func NewRemoteAdapter(client *AccountClient, logger *slog.Logger) *RemoteAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteAdapter{client: client, logger: logger}
}

// Mode はModeRemoteを返す。
func (a *RemoteAdapter) Mode() Mode { return ModeRemote }

// Client はアカウントサービスのクライアントを返す。
func (a *RemoteAdapter) Client() *AccountClient { return a.client }

// LoadUsers は常に空のマップを返す。資格情報はサーバーが管理する。
func (a *RemoteAdapter) LoadUsers(context.Context) (map[string]model.UserRecord, error) {
	return map[string]model.UserRecord{}, nil
}

// SaveUsers は何もしない。
func (a *RemoteAdapter) SaveUsers(context.Context, map[string]model.UserRecord) error {
	return nil
}

// LoadEvents はサーバーから予定を取得してstoreに統合する。
// 取得に失敗した場合はstoreをそのままにしてErrLoadFailedを返す。
func (a *RemoteAdapter) LoadEvents(ctx context.Context, username string, store *calendar.Store) error {
	events, err := a.client.FetchEvents(ctx, username)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.loadFailures.Add(1)
		a.logger.Warn("remote event load failed",
			slog.String("error", err.Error()),
			slog.String("username", username),
			slog.String("resource", "events"),
		)
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	store.Merge(events)
	return nil
}

// SaveEvents はユーザーの全予定をサーバーに送信する。
// 失敗はログに記録するのみで呼び出し側には返さない。
func (a *RemoteAdapter) SaveEvents(ctx context.Context, username string, events model.EventMap) error {
	if events == nil {
		events = model.EventMap{}
	}
	if err := a.client.PushEvents(ctx, username, events); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.saveFailures.Add(1)
		a.logger.Warn("remote event save failed",
			slog.String("error", err.Error()),
			slog.String("username", username),
			slog.String("resource", "events"),
		)
	}
	return nil
}

// SaveFailures はこれまでに握りつぶした保存失敗の回数を返す。
func (a *RemoteAdapter) SaveFailures() int64 { return a.saveFailures.Load() }

// LoadFailures はこれまでの読み込み失敗の回数を返す。
func (a *RemoteAdapter) LoadFailures() int64 { return a.loadFailures.Load() }

var _ Adapter = (*RemoteAdapter)(nil)
