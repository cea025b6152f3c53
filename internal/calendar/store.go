package calendar

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hitoshi/daycast/internal/model"
)

// EventPatch は予定の部分更新内容を表す。
// Titleが空（空白のみを含む）の場合はタイトルを変更しない。
// StartとEndは両方が指定された場合のみ組として適用する。
type EventPatch struct {
	Title *string
	Start *string
	End   *string
}

// Store は日付キーから予定リストへのインメモリストア。
// 1つの認証済みセッションにつき1つ存在し、ログイン・ログアウト・ユーザー切り替え時に丸ごと置き換えられる。
// 予定は作成時に採番されたIDで参照するため、永続化層から再読み込みした後も編集・削除が可能。
type Store struct {
	mu     sync.RWMutex
	events model.EventMap
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{events: make(model.EventMap)}
}

// EventsOn は指定日の予定を挿入順で返す。予定がなければ空スライスを返す。
// 返り値はコピーのため、呼び出し元が変更してもストアには影響しない。
func (s *Store) EventsOn(key string) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[key]
	out := make([]model.Event, len(events))
	copy(out, events)
	return out
}

// Add は指定日の末尾に予定を追加し、採番・既定値補完後の予定を返す。
func (s *Store) Add(key string, e model.Event) (model.Event, error) {
	if !IsValidDateKey(key) {
		return model.Event{}, model.NewInvalidDateKeyError(key)
	}
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return model.Event{}, model.NewEmptyTitleError()
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e = e.WithDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[key] = append(s.events[key], e)
	return e, nil
}

// Edit はIDで指定した予定をその場で更新する。
// 変更が発生した場合はtrueを返す。空タイトルのみのパッチは何も変更しない。
func (s *Store) Edit(key, id string, p EventPatch) (bool, error) {
	var start, end string
	timed := p.Start != nil && p.End != nil
	if timed {
		var err error
		if start, err = NormalizeTime(*p.Start); err != nil {
			return false, err
		}
		if end, err = NormalizeTime(*p.End); err != nil {
			return false, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.events[key], id)
	if idx < 0 {
		return false, model.NewEventNotFoundError(id)
	}
	ev := &s.events[key][idx]

	changed := false
	if p.Title != nil {
		if title := strings.TrimSpace(*p.Title); title != "" && title != ev.Title {
			ev.Title = title
			changed = true
		}
	}
	if timed && (ev.Start != start || ev.End != end) {
		ev.Start = start
		ev.End = end
		changed = true
	}
	return changed, nil
}

// Delete はIDで指定した予定を削除する。空になった日付キーは取り除く。
func (s *Store) Delete(key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events[key]
	idx := indexOf(events, id)
	if idx < 0 {
		return model.NewEventNotFoundError(id)
	}

	rest := make([]model.Event, 0, len(events)-1)
	rest = append(rest, events[:idx]...)
	rest = append(rest, events[idx+1:]...)
	if len(rest) == 0 {
		delete(s.events, key)
	} else {
		s.events[key] = rest
	}
	return nil
}

// Find はIDで予定を検索する。
func (s *Store) Find(key, id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[key]
	if idx := indexOf(events, id); idx >= 0 {
		return events[idx], true
	}
	return model.Event{}, false
}

// ReplaceAll はストアの内容をmで丸ごと置き換える。
func (s *Store) ReplaceAll(m model.EventMap) {
	next := make(model.EventMap, len(m))
	for key, events := range m {
		if normalized := normalizeBucket(events); len(normalized) > 0 {
			next[key] = normalized
		}
	}

	s.mu.Lock()
	s.events = next
	s.mu.Unlock()
}

// Merge はmに含まれる日付キーのみを上書きし、それ以外のキーは保持する。
// 読み込み済みの内容を欠損データで消さないための読み込み時の意味論。
func (s *Store) Merge(m model.EventMap) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, events := range m {
		normalized := normalizeBucket(events)
		if len(normalized) == 0 {
			delete(s.events, key)
			continue
		}
		s.events[key] = normalized
	}
}

// Snapshot は永続化用にストア全体のディープコピーを返す。
func (s *Store) Snapshot() model.EventMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.Clone()
}

// Clear はすべての予定を破棄する。
func (s *Store) Clear() {
	s.mu.Lock()
	s.events = make(model.EventMap)
	s.mu.Unlock()
}

// Len は全予定数を返す。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.Count()
}

// Keys は予定が存在する日付キーを昇順で返す。
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.events))
	for k := range s.events {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indexOf(events []model.Event, id string) int {
	if id == "" {
		return -1
	}
	for i := range events {
		if events[i].ID == id {
			return i
		}
	}
	return -1
}

// normalizeBucket は読み込んだ予定にIDと既定色を補う。
func normalizeBucket(events []model.Event) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		out = append(out, e.WithDefaults())
	}
	return out
}
