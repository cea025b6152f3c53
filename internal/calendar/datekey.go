// Package calendar は日付キーの変換、月表示用の日付グリッド生成、
// およびセッションごとのインメモリ予定ストアを提供する。
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/daycast/internal/model"
)

// DateKeyLayout は日付キーの書式。
const DateKeyLayout = "2006-01-02"

// GridDays は月表示グリッドのセル数（6週 × 7日）。
const GridDays = 42

// ToDateKey はtのロケーションにおける年・月・日から YYYY-MM-DD 形式の日付キーを生成する。
// UTCへの変換は行わないため、UTCより遅れたタイムゾーンの深夜でも日付がずれない。
func ToDateKey(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// ParseDateKey は日付キーをlocにおけるその日の0時として解釈する。
// locがnilの場合はtime.Localを使用する。
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, model.NewInvalidDateKeyError(key)
	}
	return t, nil
}

// IsValidDateKey は正規形の日付キーかどうかを返す。
// "2025-8-1" のようなゼロ埋めされていないキーは正規形ではないため拒否する。
func IsValidDateKey(key string) bool {
	t, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return false
	}
	return ToDateKey(t) == key
}

// BuildCalendarDates はyear/monthの月表示用に、1日以前の日曜日から始まる42日分の日付を返す。
// 日付の加算にはAddDateを使うため、夏時間の切り替え日でも日付が飛ばない。
func BuildCalendarDates(year int, month time.Month, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	dates := make([]time.Time, GridDays)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// NormalizeTime は "9:05" のような時刻を "09:05" にゼロ埋めする。
// 時刻の昇順ソートは文字列比較で行うため、保存前に必ず正規化する。
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", model.NewInvalidTimeError(s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 || len(parts[0]) > 2 {
		return "", model.NewInvalidTimeError(s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return "", model.NewInvalidTimeError(s)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// IsValidTime は正規形の HH:MM 時刻かどうかを返す。
func IsValidTime(s string) bool {
	n, err := NormalizeTime(s)
	return err == nil && n == s
}

// ParseTimeRange は "09:00-10:30" 形式の範囲を開始・終了時刻に分解して正規化する。
func ParseTimeRange(s string) (start, end string, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return "", "", model.NewInvalidTimeError(s)
	}
	if start, err = NormalizeTime(parts[0]); err != nil {
		return "", "", err
	}
	if end, err = NormalizeTime(parts[1]); err != nil {
		return "", "", err
	}
	return start, end, nil
}
