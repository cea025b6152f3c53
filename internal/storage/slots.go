package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SlotStore は名前付きスロットに文字列値を保存するキーバリューストア。
// テーブル slots(name, value, updated_at) を使う。
type SlotStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSlotStore はSlotStoreを生成する。dbはdatabase.OpenLocalで開いたもの。
func NewSlotStore(db *sql.DB) *SlotStore {
	return &SlotStore{db: db, now: time.Now}
}

// Get はスロットの値を返す。存在しない場合はokがfalseとなる。
func (s *SlotStore) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", name, err)
	}
	return value, true, nil
}

// Put はスロットの値を書き込む。既存の値は置き換える。
func (s *SlotStore) Put(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", name, err)
	}
	return nil
}

// Delete はスロットを削除する。存在しない場合もエラーにしない。
func (s *SlotStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", name, err)
	}
	return nil
}

// GetJSON はスロットの値をJSONとしてdstにデコードする。存在しない場合はfalseを返す。
func (s *SlotStore) GetJSON(ctx context.Context, name string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("failed to decode slot %s: %w", name, err)
	}
	return true, nil
}

// PutJSON はvをJSONにエンコードしてスロットに書き込む。
func (s *SlotStore) PutJSON(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode slot %s: %w", name, err)
	}
	return s.Put(ctx, name, string(data))
}
