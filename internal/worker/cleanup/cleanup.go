// Package cleanup は予定の保存時に自動作成されたまま使われていないユーザーを削除するジョブを提供する。
// 資格情報を持たず、予定が1件もなく、保持日数を超えて更新されていないユーザーが対象。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRetentionDays は未使用ユーザーを残しておく日数の既定値。
const DefaultRetentionDays = 30

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const deleteOrphanUsersQuery = `
DELETE FROM users u
WHERE u.password_hash = ''
  AND u.updated_at < now() - $1::interval
  AND NOT EXISTS (SELECT 1 FROM events e WHERE e.username = u.username)`

// Job は未使用ユーザーの削除ジョブ。冪等で、対象がなくてもエラーにならない。
type Job struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int
}

// NewJob はJobを生成する。retentionDaysが0以下の場合はDefaultRetentionDaysを使う。
func NewJob(db Executor, logger *slog.Logger, retentionDays int) *Job {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{db: db, logger: logger, RetentionDays: retentionDays}
}

// Run は対象ユーザーを削除し、削除件数を返す。
func (j *Job) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	interval := fmt.Sprintf("%d days", j.RetentionDays)

	result, err := j.db.ExecContext(ctx, deleteOrphanUsersQuery, interval)
	if err != nil {
		j.logger.Error("orphan user cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("failed to delete orphan users: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted count: %w", err)
	}

	j.logger.Info("orphan user cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return deleted, nil
}

// Schedule はspecのスケジュールでRunを実行するcronを登録して開始する。
// ctxがキャンセルされた後の実行はスキップする。呼び出し元は終了時にStopを呼ぶこと。
func (j *Job) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		_, _ = j.Run(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	scheduler.Start()
	return scheduler, nil
}
