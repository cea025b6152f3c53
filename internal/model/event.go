// Package model はドメインモデルを定義する。
package model

// DefaultEventColor は色が未指定の予定に使用するアクセントカラー。
const DefaultEventColor = "#4f8cff"

// 終日予定の慣例的な開始・終了時刻。強制はしない。
const (
	AllDayStart = "00:00"
	AllDayEnd   = "23:59"
)

// eventsテーブルの列に収まる最大文字数。
const (
	MaxEventIDLength    = 64
	MaxEventColorLength = 32
)

// Event はある1日に属する予定を表す。
// Start/Endはタイムゾーンを持たない HH:MM 形式の壁時計時刻。
type Event struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	AllDay bool   `json:"allDay"`
	Color  string `json:"color,omitempty"`
}

// WithDefaults はColorが空の場合にDefaultEventColorを設定したコピーを返す。
func (e Event) WithDefaults() Event {
	if e.Color == "" {
		e.Color = DefaultEventColor
	}
	return e
}

// EventMap は日付キー（YYYY-MM-DD）から予定リストへのマッピング。
// 永続化とHTTPの送受信で共通の形式。
type EventMap map[string][]Event

// Count は全日付の予定数の合計を返す。
func (m EventMap) Count() int {
	n := 0
	for _, events := range m {
		n += len(events)
	}
	return n
}

// Clone はスライスまで複製したディープコピーを返す。
func (m EventMap) Clone() EventMap {
	out := make(EventMap, len(m))
	for k, events := range m {
		cp := make([]Event, len(events))
		copy(cp, events)
		out[k] = cp
	}
	return out
}
