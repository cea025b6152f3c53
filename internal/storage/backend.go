package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/daycast/internal/database"
)

// Options はNewの設定。
type Options struct {
	Mode           Mode
	DataPath       string
	ServerURL      string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Backend は起動時に選択されたアダプターと、常にローカルな設定保存をまとめたもの。
type Backend struct {
	Adapter     Adapter
	Preferences *Preferences
	// Accounts はリモートモードでのみ設定される。
	Accounts *AccountClient

	db *sql.DB
}

// New はモードに応じたアダプターを構成する。
// ローカルのSQLiteデータベースはセッションとテーマの保存のため両モードで開く。
func New(opts Options) (*Backend, error) {
	db, err := database.OpenLocal(opts.DataPath)
	if err != nil {
		return nil, err
	}
	slots := NewSlotStore(db)

	b := &Backend{
		Preferences: NewPreferences(slots),
		db:          db,
	}

	switch opts.Mode {
	case ModeRemote:
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		b.Accounts = NewAccountClient(opts.ServerURL, &http.Client{Timeout: timeout})
		b.Adapter = NewRemoteAdapter(b.Accounts, opts.Logger)
	case ModeLocal, "":
		b.Adapter = NewLocalAdapter(slots)
	default:
		db.Close()
		return nil, fmt.Errorf("unknown storage mode: %q", opts.Mode)
	}

	return b, nil
}

// Close はローカルデータベースを閉じる。
func (b *Backend) Close() error {
	return b.db.Close()
}
