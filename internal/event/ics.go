package event

import (
	"context"
	"fmt"
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hitoshi/daycast/internal/calendar"
)

// icsProductID はiCalendarのPRODID。
const icsProductID = "-//daycast//daycast calendar//EN"

// floatingLayout はタイムゾーンを持たないDATE-TIME値の書式。
const floatingLayout = "20060102T150405"

// ExportICS はユーザーの全予定をiCalendar形式で出力する。
// 終日予定はDATE値、時刻付きの予定はタイムゾーンなしのローカル時刻として出力する。
func (s *EventService) ExportICS(ctx context.Context, username string, stamp time.Time) (string, error) {
	events, err := s.Load(ctx, username)
	if err != nil {
		return "", err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(fmt.Sprintf("daycast: %s", username))

	keys := make([]string, 0, len(events))
	for k := range events {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		day, err := calendar.ParseDateKey(key, time.UTC)
		if err != nil {
			return "", err
		}

		for _, e := range events[key] {
			ve := cal.AddEvent(fmt.Sprintf("%s@daycast", e.ID))
			ve.SetDtStampTime(stamp)
			ve.SetSummary(e.Title)
			ve.SetColor(e.Color)

			if e.AllDay || e.Start == "" {
				ve.SetAllDayStartAt(day)
				ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
				continue
			}

			start := atClock(day, e.Start)
			ve.SetProperty(ical.ComponentPropertyDtStart, start.Format(floatingLayout))
			if e.End != "" {
				// 終了が開始より前の予定は開始時刻のみ出力する
				if end := atClock(day, e.End); !end.Before(start) {
					ve.SetProperty(ical.ComponentPropertyDtEnd, end.Format(floatingLayout))
				}
			}
		}
	}

	return cal.Serialize(), nil
}

// atClock は日付dayにHH:MM形式の時刻を適用する。
// 時刻は保存時に正規化済みのため、解析できない場合は日付の0時とする。
func atClock(day time.Time, hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}
