// Package weather は天気予報プロバイダーとジオコーディングプロバイダーのクライアントを提供する。
// プロバイダーに到達できない場合は決定的な代替予報を返し、UIが空表示にならないことを保証する。
package weather

import (
	"time"

	"github.com/hitoshi/daycast/internal/calendar"
)

// Units は気温の単位。
type Units string

const (
	// Celsius は摂氏。
	Celsius Units = "celsius"
	// Fahrenheit は華氏。
	Fahrenheit Units = "fahrenheit"
)

// Symbol は表示用の単位記号を返す。
func (u Units) Symbol() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// Toggle はもう一方の単位を返す。
func (u Units) Toggle() Units {
	if u == Fahrenheit {
		return Celsius
	}
	return Fahrenheit
}

// Source は予報データの取得元。
type Source string

const (
	// SourceProvider は外部プロバイダーから取得した予報。
	SourceProvider Source = "provider"
	// SourceFallback はプロバイダー到達不能時の代替予報。
	SourceFallback Source = "fallback"
)

// Current は現在の天気。
type Current struct {
	Temperature float64
	Code        int
}

// Day は1日分の予報。
type Day struct {
	Date string // YYYY-MM-DD
	Max  float64
	Min  float64
	Code int
}

// Forecast は現在の天気と日別予報。
type Forecast struct {
	Current   Current
	Daily     []Day
	UpdatedAt time.Time
	Units     Units
	Source    Source
}

// FallbackDays は代替予報の日数。
const FallbackDays = 7

// 代替予報の基準気温（摂氏）。
const (
	fallbackMaxBase = 20.0
	fallbackMinBase = 12.0
)

// fallbackCodes は代替予報で順に割り当てる天気コード。
var fallbackCodes = [FallbackDays]int{0, 1, 2, 3, 61, 63, 80}

// Fallback はnowのローカル日付を起点とする7日分の決定的な代替予報を返す。
// 最高・最低気温は基準値から1日ごとに1度ずつ上がる。
func Fallback(now time.Time, units Units) Forecast {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	daily := make([]Day, FallbackDays)
	for i := range daily {
		daily[i] = Day{
			Date: calendar.ToDateKey(start.AddDate(0, 0, i)),
			Max:  convert(fallbackMaxBase+float64(i), units),
			Min:  convert(fallbackMinBase+float64(i), units),
			Code: fallbackCodes[i%len(fallbackCodes)],
		}
	}

	return Forecast{
		Current:   Current{Temperature: daily[0].Max, Code: daily[0].Code},
		Daily:     daily,
		UpdatedAt: now,
		Units:     units,
		Source:    SourceFallback,
	}
}

func convert(celsius float64, units Units) float64 {
	if units == Fahrenheit {
		return celsius*9/5 + 32
	}
	return celsius
}
