package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/hitoshi/daycast/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用した予定リポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// ListByUser はユーザーの全予定を日付キーごとに挿入順で返す。
func (r *PostgresEventRepo) ListByUser(ctx context.Context, username string) (model.EventMap, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, date_key, title, start_time, end_time, all_day, COALESCE(color, '')
		 FROM events
		 WHERE username = $1
		 ORDER BY date_key, position`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make(model.EventMap)
	for rows.Next() {
		var (
			key string
			e   model.Event
		)
		if err := rows.Scan(&e.ID, &key, &e.Title, &e.Start, &e.End, &e.AllDay, &e.Color); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events[key] = append(events[key], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// ReplaceForUser はユーザーの予定を削除して全件を再挿入する。
// 空の日付キーは保存しない。
func (r *PostgresEventRepo) ReplaceForUser(ctx context.Context, username string, events model.EventMap) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 予定の保存のみで作られたユーザーは資格情報を持たない
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (username) VALUES ($1) ON CONFLICT (username) DO NOTHING`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE username = $1`, username); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (username, event_id, date_key, position, title, start_time, end_time, all_day, color)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	keys := make([]string, 0, len(events))
	for k := range events {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for pos, e := range events[key] {
			_, err := stmt.ExecContext(ctx,
				username, e.ID, key, pos, e.Title, e.Start, e.End, e.AllDay, e.Color,
			)
			if err != nil {
				return fmt.Errorf("failed to insert event: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
