package calendar

import (
	"time"

	"github.com/hitoshi/daycast/internal/model"
)

// NewDemoStore はtodayを基準としたデモ用の予定を登録済みのStoreを返す。
// 未ログイン時とログアウト後の表示に使用し、認証時にクリアされる。
func NewDemoStore(today time.Time) *Store {
	s := NewStore()
	todayKey := ToDateKey(today)
	tomorrowKey := ToDateKey(today.AddDate(0, 0, 1))
	nextWeekKey := ToDateKey(today.AddDate(0, 0, 7))

	demo := []struct {
		key   string
		event model.Event
	}{
		{todayKey, model.Event{Title: "Team standup", Start: "09:30", End: "09:45"}},
		{todayKey, model.Event{Title: "Lunch with Sam", Start: "12:00", End: "13:00", Color: "#f59e0b"}},
		{todayKey, model.Event{Title: "Gym", Start: "18:00", End: "19:00", Color: "#10b981"}},
		{tomorrowKey, model.Event{Title: "Holiday", Start: model.AllDayStart, End: model.AllDayEnd, AllDay: true, Color: "#ef4444"}},
		{nextWeekKey, model.Event{Title: "Dentist", Start: "15:00", End: "15:30"}},
	}
	for _, d := range demo {
		// デモデータは常に妥当なためエラーは発生しない
		_, _ = s.Add(d.key, d.event)
	}
	return s
}
