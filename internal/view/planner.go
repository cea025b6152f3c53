package view

import (
	"sort"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/model"
)

// Planner は選択日の予定を終日と時刻指定に分けたもの。
type Planner struct {
	Key    string
	AllDay []model.Event
	Timed  []model.Event // Startの昇順
}

// BuildPlanner はkeyの日の予定を終日・時刻指定に分割し、時刻指定をStart昇順に並べる。
// 比較は文字列比較のため、時刻はゼロ埋めされた HH:MM であることが前提。
// 同じ開始時刻の予定は挿入順を保つ。
func BuildPlanner(key string, store *calendar.Store) Planner {
	p := Planner{Key: key}
	if store == nil {
		return p
	}

	for _, e := range store.EventsOn(key) {
		if e.AllDay {
			p.AllDay = append(p.AllDay, e)
		} else {
			p.Timed = append(p.Timed, e)
		}
	}
	sort.SliceStable(p.Timed, func(i, j int) bool {
		return p.Timed[i].Start < p.Timed[j].Start
	})
	return p
}

// Empty は予定が1件もない場合にtrueを返す。
func (p Planner) Empty() bool {
	return len(p.AllDay) == 0 && len(p.Timed) == 0
}

// Events は表示順（終日→時刻指定）に並べた予定を返す。UIのカーソル移動に使う。
func (p Planner) Events() []model.Event {
	out := make([]model.Event, 0, len(p.AllDay)+len(p.Timed))
	out = append(out, p.AllDay...)
	return append(out, p.Timed...)
}
