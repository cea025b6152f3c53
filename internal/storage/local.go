package storage

import (
	"context"
	"fmt"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/model"
)

// LocalAdapter はSQLiteのスロットに資格情報と予定を保存するアダプター。
type LocalAdapter struct {
	slots *SlotStore
}

// NewLocalAdapter はLocalAdapterを生成する。
func NewLocalAdapter(slots *SlotStore) *LocalAdapter {
	return &LocalAdapter{slots: slots}
}

// Mode はModeLocalを返す。
func (a *LocalAdapter) Mode() Mode { return ModeLocal }

// LoadUsers は保存済みの資格情報マップを返す。未保存の場合は空のマップを返す。
func (a *LocalAdapter) LoadUsers(ctx context.Context) (map[string]model.UserRecord, error) {
	users := make(map[string]model.UserRecord)
	if _, err := a.slots.GetJSON(ctx, SlotUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SaveUsers は資格情報マップを保存する。
func (a *LocalAdapter) SaveUsers(ctx context.Context, users map[string]model.UserRecord) error {
	return a.slots.PutJSON(ctx, SlotUsers, users)
}

// LoadEvents はユーザーの予定スロットをstoreに統合する。
func (a *LocalAdapter) LoadEvents(ctx context.Context, username string, store *calendar.Store) error {
	var events model.EventMap
	ok, err := a.slots.GetJSON(ctx, EventsSlot(username), &events)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if !ok {
		return nil
	}
	store.Merge(events)
	return nil
}

// SaveEvents はユーザーの全予定をスロットに書き込む。
func (a *LocalAdapter) SaveEvents(ctx context.Context, username string, events model.EventMap) error {
	if events == nil {
		events = model.EventMap{}
	}
	return a.slots.PutJSON(ctx, EventsSlot(username), events)
}

var _ Adapter = (*LocalAdapter)(nil)
