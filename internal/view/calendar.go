// Package view はStoreから月表示と1日分のプランナー表示を導出する。
// いずれも純粋関数で、描画そのものはUI層が担当する。
package view

import (
	"fmt"
	"time"

	"github.com/hitoshi/daycast/internal/calendar"
)

// MaxDots は1セルに表示する予定インジケーターの上限。
// 超過分はMoreに件数だけを保持し、予定自体はStoreに残る。
const MaxDots = 3

// Cell は月表示グリッドの1日分のセル。
type Cell struct {
	Date       time.Time
	Key        string
	Day        int
	InMonth    bool
	IsToday    bool
	IsSelected bool
	Dots       []string // 予定の表示色（最大MaxDots件）
	More       int      // MaxDotsを超えた予定数
}

// Month は6週×7日の月表示。
type Month struct {
	Year  int
	Month time.Month
	Cells []Cell
}

// BuildMonth はyear/monthの42セルを生成し、今日・選択日・予定インジケーターを付与する。
func BuildMonth(year int, month time.Month, store *calendar.Store, selected string, today time.Time) Month {
	todayKey := calendar.ToDateKey(today)
	dates := calendar.BuildCalendarDates(year, month, today.Location())

	cells := make([]Cell, len(dates))
	for i, d := range dates {
		key := calendar.ToDateKey(d)
		cell := Cell{
			Date:       d,
			Key:        key,
			Day:        d.Day(),
			InMonth:    d.Month() == month,
			IsToday:    key == todayKey,
			IsSelected: key == selected,
		}
		if store != nil {
			events := store.EventsOn(key)
			for j, e := range events {
				if j >= MaxDots {
					cell.More = len(events) - MaxDots
					break
				}
				cell.Dots = append(cell.Dots, e.Color)
			}
		}
		cells[i] = cell
	}

	return Month{Year: year, Month: month, Cells: cells}
}

// Weeks はセルを週単位の行に分割する。
func (m Month) Weeks() [][]Cell {
	weeks := make([][]Cell, 0, len(m.Cells)/7)
	for i := 0; i+7 <= len(m.Cells); i += 7 {
		weeks = append(weeks, m.Cells[i:i+7])
	}
	return weeks
}

// Title は "August 2025" 形式の見出しを返す。
func (m Month) Title() string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}

// CellAt は日付キーに対応するセルを返す。
func (m Month) CellAt(key string) (Cell, bool) {
	for _, c := range m.Cells {
		if c.Key == key {
			return c, true
		}
	}
	return Cell{}, false
}
