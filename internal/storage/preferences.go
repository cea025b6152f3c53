package storage

import (
	"context"
	"time"
)

// SessionMarker は再起動後にログイン状態を復元するための記録。
type SessionMarker struct {
	Username   string    `json:"username"`
	SignedInAt time.Time `json:"signedInAt"`
}

// Preferences はセッションとテーマを保存する。モードにかかわらず常にローカルに保存する。
type Preferences struct {
	slots *SlotStore
}

// NewPreferences はPreferencesを生成する。
func NewPreferences(slots *SlotStore) *Preferences {
	return &Preferences{slots: slots}
}

// Session は保存済みのセッションを返す。存在しない場合はnilを返す。
func (p *Preferences) Session(ctx context.Context) (*SessionMarker, error) {
	var marker SessionMarker
	ok, err := p.slots.GetJSON(ctx, SlotSession, &marker)
	if err != nil || !ok || marker.Username == "" {
		return nil, err
	}
	return &marker, nil
}

// SetSession はログイン中のユーザーを記録する。
func (p *Preferences) SetSession(ctx context.Context, username string) error {
	return p.slots.PutJSON(ctx, SlotSession, SessionMarker{
		Username:   username,
		SignedInAt: p.slots.now().UTC(),
	})
}

// ClearSession はセッションの記録を削除する。
func (p *Preferences) ClearSession(ctx context.Context) error {
	return p.slots.Delete(ctx, SlotSession)
}

// Theme は保存済みのテーマを返す。未保存の場合はfallbackを返す。
func (p *Preferences) Theme(ctx context.Context, fallback string) (string, error) {
	theme, ok, err := p.slots.Get(ctx, SlotTheme)
	if err != nil {
		return fallback, err
	}
	if !ok || theme == "" {
		return fallback, nil
	}
	return theme, nil
}

// SetTheme はテーマを保存する。
func (p *Preferences) SetTheme(ctx context.Context, theme string) error {
	return p.slots.Put(ctx, SlotTheme, theme)
}
