package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/model"
	"github.com/hitoshi/daycast/internal/storage"
	"github.com/hitoshi/daycast/internal/weather"
)

// mockAdapter はstorage.Adapterのモック実装。
type mockAdapter struct {
	mu           sync.Mutex
	loadEventsFn func(ctx context.Context, username string, store *calendar.Store) error
	saves        []model.EventMap
	saveErr      error
}

func (m *mockAdapter) Mode() storage.Mode { return storage.ModeLocal }

func (m *mockAdapter) LoadUsers(context.Context) (map[string]model.UserRecord, error) {
	return map[string]model.UserRecord{}, nil
}

func (m *mockAdapter) SaveUsers(context.Context, map[string]model.UserRecord) error { return nil }

func (m *mockAdapter) LoadEvents(ctx context.Context, username string, store *calendar.Store) error {
	if m.loadEventsFn != nil {
		return m.loadEventsFn(ctx, username, store)
	}
	return nil
}

func (m *mockAdapter) SaveEvents(_ context.Context, _ string, events model.EventMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, events)
	return m.saveErr
}

func (m *mockAdapter) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

// mockWeather はWeatherSourceのモック実装。
type mockWeather struct {
	fetchFn   func(ctx context.Context, lat, lon float64, units weather.Units) weather.Forecast
	geocodeFn func(ctx context.Context, name string) (*weather.Place, error)
	fetches   int
}

func (m *mockWeather) FetchWeather(ctx context.Context, lat, lon float64, units weather.Units) weather.Forecast {
	m.fetches++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, lat, lon, units)
	}
	return weather.Forecast{Source: weather.SourceProvider, Units: units, Current: weather.Current{Temperature: lat}}
}

func (m *mockWeather) Geocode(ctx context.Context, name string) (*weather.Place, error) {
	if m.geocodeFn != nil {
		return m.geocodeFn(ctx, name)
	}
	return nil, nil
}

// mockThemes はThemeStoreのモック実装。
type mockThemes struct {
	theme  string
	setErr error
}

func (m *mockThemes) Theme(_ context.Context, fallback string) (string, error) {
	if m.theme == "" {
		return fallback, nil
	}
	return m.theme, nil
}

func (m *mockThemes) SetTheme(_ context.Context, theme string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.theme = theme
	return nil
}

var fixedNow = time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

func newTestDashboard(t *testing.T) (*Dashboard, *mockAdapter, *mockWeather, *mockThemes) {
	t.Helper()
	adapter := &mockAdapter{}
	wx := &mockWeather{}
	themes := &mockThemes{}
	d := New(Options{
		Adapter: adapter,
		Store:   calendar.NewStore(),
		Weather: wx,
		Themes:  themes,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:     func() time.Time { return fixedNow },
	})
	d.Activate("alice")
	return d, adapter, wx, themes
}

func TestNew_Defaults(t *testing.T) {
	d, _, _, _ := newTestDashboard(t)
	s := d.State()
	if s.SelectedDate != "2024-03-05" || s.Year != 2024 || s.Month != time.March {
		t.Errorf("選択日の初期値 = %s %d/%d", s.SelectedDate, s.Year, s.Month)
	}
	if s.Theme != ThemeDark || s.Units != weather.Celsius {
		t.Errorf("Theme/Units = %s/%s", s.Theme, s.Units)
	}
	if s.Forecast.Source != weather.SourceFallback || len(s.Forecast.Daily) != weather.FallbackDays {
		t.Errorf("初期予報が代替予報ではない: %+v", s.Forecast)
	}
}

func TestInit_RunsOnce(t *testing.T) {
	d, _, wx, themes := newTestDashboard(t)
	themes.theme = ThemeLight
	d.state.Location = Location{Name: "Tokyo", Lat: 35.6, Lon: 139.7, Resolved: true}

	if !d.Init(context.Background()) {
		t.Fatal("初回のInitが実行されなかった")
	}
	if d.Init(context.Background()) {
		t.Error("2回目のInitが実行された")
	}
	if wx.fetches != 1 {
		t.Errorf("fetches = %d, want 1", wx.fetches)
	}
	if d.State().Theme != ThemeLight {
		t.Errorf("保存済みテーマが読み込まれていない: %s", d.State().Theme)
	}
}

func TestAddEvent_SavesSnapshot(t *testing.T) {
	ctx := context.Background()
	d, adapter, _, _ := newTestDashboard(t)

	e, err := d.AddEvent(ctx, Draft{Title: "Standup", TimeRange: "9:00-9:15"})
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if e.Start != "09:00" || e.End != "09:15" || e.Color != model.DefaultEventColor {
		t.Errorf("追加された予定 = %+v", e)
	}
	if adapter.saveCount() != 1 {
		t.Fatalf("saves = %d, want 1", adapter.saveCount())
	}
	if got := adapter.saves[0]["2024-03-05"]; len(got) != 1 || got[0].ID != e.ID {
		t.Errorf("保存内容 = %+v", adapter.saves[0])
	}

	allDay, err := d.AddEvent(ctx, Draft{Title: "Holiday", AllDay: true})
	if err != nil {
		t.Fatalf("終日予定のAddEvent failed: %v", err)
	}
	if allDay.Start != model.AllDayStart || allDay.End != model.AllDayEnd {
		t.Errorf("終日予定の時刻 = %s-%s", allDay.Start, allDay.End)
	}
}

func TestAddEvent_Invalid(t *testing.T) {
	d, adapter, _, _ := newTestDashboard(t)

	tests := []struct {
		name  string
		draft Draft
		code  string
	}{
		{"empty title", Draft{Title: "  ", AllDay: true}, model.ErrCodeEmptyTitle},
		{"bad range", Draft{Title: "x", TimeRange: "9am"}, model.ErrCodeInvalidTime},
		{"bad minutes", Draft{Title: "x", TimeRange: "09:00-10:7"}, model.ErrCodeInvalidTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.AddEvent(context.Background(), tt.draft); !model.IsCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
	if adapter.saveCount() != 0 {
		t.Errorf("検証エラーで保存された: %d", adapter.saveCount())
	}
}

func TestEditEvent_NoOpSkipsSave(t *testing.T) {
	ctx := context.Background()
	d, adapter, _, _ := newTestDashboard(t)
	e, err := d.AddEvent(ctx, Draft{Title: "Standup", TimeRange: "09:00-09:15"})
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	empty := ""
	changed, err := d.EditEvent(ctx, e.ID, calendar.EventPatch{Title: &empty})
	if err != nil || changed {
		t.Fatalf("空タイトルの編集 = (%v, %v)", changed, err)
	}
	if adapter.saveCount() != 1 {
		t.Errorf("変更なしで保存された: %d", adapter.saveCount())
	}

	title := "Daily sync"
	changed, err = d.EditEvent(ctx, e.ID, calendar.EventPatch{Title: &title})
	if err != nil || !changed {
		t.Fatalf("タイトル編集 = (%v, %v)", changed, err)
	}
	if adapter.saveCount() != 2 {
		t.Errorf("saves = %d, want 2", adapter.saveCount())
	}
}

func TestResolveEvent(t *testing.T) {
	ctx := context.Background()
	d, adapter, _, _ := newTestDashboard(t)
	e, err := d.AddEvent(ctx, Draft{Title: "Gym", TimeRange: "18:00-19:00"})
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	if changed, err := d.ResolveEvent(ctx, e.ID, ChoiceCancel, calendar.EventPatch{}); err != nil || changed {
		t.Errorf("キャンセル = (%v, %v)", changed, err)
	}

	start, end := "19:00", "20:00"
	if changed, err := d.ResolveEvent(ctx, e.ID, ChoiceEdit, calendar.EventPatch{Start: &start, End: &end}); err != nil || !changed {
		t.Errorf("編集 = (%v, %v)", changed, err)
	}
	_, planner, _ := d.Render()
	if got := planner.Timed; len(got) != 1 || got[0].Start != "19:00" {
		t.Errorf("編集後のプランナー = %+v", got)
	}

	if changed, err := d.ResolveEvent(ctx, e.ID, ChoiceDelete, calendar.EventPatch{}); err != nil || !changed {
		t.Errorf("削除 = (%v, %v)", changed, err)
	}
	_, planner, _ = d.Render()
	if !planner.Empty() {
		t.Errorf("削除後も予定が残っている: %+v", planner)
	}
	if adapter.saveCount() != 3 {
		t.Errorf("saves = %d, want 3", adapter.saveCount())
	}

	if _, err := d.ResolveEvent(ctx, e.ID, ChoiceDelete, calendar.EventPatch{}); !model.IsCode(err, model.ErrCodeEventNotFound) {
		t.Errorf("err = %v, want EVENT_NOT_FOUND", err)
	}
}

func TestSaveSkippedWithoutUser(t *testing.T) {
	d, adapter, _, _ := newTestDashboard(t)
	d.Deactivate()

	if _, err := d.AddEvent(context.Background(), Draft{Title: "Demo", AllDay: true}); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if adapter.saveCount() != 0 {
		t.Errorf("未ログインで保存された: %d", adapter.saveCount())
	}
}

func TestSaveFailureKeepsStore(t *testing.T) {
	d, adapter, _, _ := newTestDashboard(t)
	adapter.saveErr = errors.New("disk full")

	if _, err := d.AddEvent(context.Background(), Draft{Title: "Standup", AllDay: true}); err != nil {
		t.Fatalf("保存失敗がAddEventのエラーになった: %v", err)
	}
	if d.store.Len() != 1 {
		t.Errorf("Store.Len = %d, want 1", d.store.Len())
	}
}

func TestNavigation(t *testing.T) {
	d, _, _, _ := newTestDashboard(t)

	d.ShiftMonth(-3)
	if s := d.State(); s.Year != 2023 || s.Month != time.December || s.SelectedDate != "2024-03-05" {
		t.Errorf("ShiftMonth(-3) = %d/%d selected=%s", s.Year, s.Month, s.SelectedDate)
	}

	d.GoToday()
	d.MoveSelection(-5)
	if s := d.State(); s.SelectedDate != "2024-02-29" || s.Month != time.February {
		t.Errorf("MoveSelection(-5) = %s month=%d", s.SelectedDate, s.Month)
	}

	if err := d.SelectDate("2024-13-01"); !model.IsCode(err, model.ErrCodeInvalidDateKey) {
		t.Errorf("err = %v, want INVALID_DATE_KEY", err)
	}
	if err := d.SelectDate("2025-01-31"); err != nil {
		t.Fatalf("SelectDate failed: %v", err)
	}
	month, _, _ := d.Render()
	if month.Title() != "January 2025" {
		t.Errorf("Title = %s", month.Title())
	}
	if cell, ok := month.CellAt("2025-01-31"); !ok || !cell.IsSelected {
		t.Errorf("選択セル = %+v, %v", cell, ok)
	}
}

func TestToggleTheme_Persists(t *testing.T) {
	d, _, _, themes := newTestDashboard(t)

	if got := d.ToggleTheme(context.Background()); got != ThemeLight {
		t.Errorf("ToggleTheme = %s, want light", got)
	}
	if themes.theme != ThemeLight {
		t.Errorf("保存されたテーマ = %q", themes.theme)
	}

	themes.setErr = errors.New("readonly")
	if got := d.ToggleTheme(context.Background()); got != ThemeDark {
		t.Errorf("保存失敗時のToggleTheme = %s, want dark", got)
	}
}

func TestToggleUnits_RefetchesWeather(t *testing.T) {
	d, _, wx, _ := newTestDashboard(t)
	d.state.Location = Location{Name: "Tokyo", Lat: 35.6, Lon: 139.7, Resolved: true}

	if got := d.ToggleUnits(context.Background()); got != weather.Fahrenheit {
		t.Errorf("ToggleUnits = %s", got)
	}
	if wx.fetches != 1 || d.State().Forecast.Units != weather.Fahrenheit {
		t.Errorf("fetches=%d units=%s", wx.fetches, d.State().Forecast.Units)
	}
}

func TestSetLocation(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		d, _, wx, _ := newTestDashboard(t)
		wx.geocodeFn = func(_ context.Context, name string) (*weather.Place, error) {
			return &weather.Place{Lat: 34.69, Lon: 135.5, DisplayName: "Osaka, Japan"}, nil
		}
		loc, err := d.SetLocation(ctx, " Osaka ")
		if err != nil {
			t.Fatalf("SetLocation failed: %v", err)
		}
		if !loc.Resolved || loc.Name != "Osaka, Japan" {
			t.Errorf("Location = %+v", loc)
		}
		if f := d.State().Forecast; f.Source != weather.SourceProvider || f.Current.Temperature != 34.69 {
			t.Errorf("Forecast = %+v", f)
		}
	})

	t.Run("not found keeps name", func(t *testing.T) {
		d, _, wx, _ := newTestDashboard(t)
		loc, err := d.SetLocation(ctx, "Atlantis")
		if err != nil {
			t.Fatalf("SetLocation failed: %v", err)
		}
		if loc.Resolved || loc.Name != "Atlantis" {
			t.Errorf("Location = %+v", loc)
		}
		if wx.fetches != 0 || d.State().Forecast.Source != weather.SourceFallback {
			t.Errorf("座標なしで予報を取得した: fetches=%d", wx.fetches)
		}
	})

	t.Run("lookup error keeps name", func(t *testing.T) {
		d, _, wx, _ := newTestDashboard(t)
		wx.geocodeFn = func(context.Context, string) (*weather.Place, error) {
			return nil, errors.New("timeout")
		}
		loc, err := d.SetLocation(ctx, "Sapporo")
		if err != nil || loc.Resolved || loc.Name != "Sapporo" {
			t.Errorf("SetLocation = (%+v, %v)", loc, err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		d, _, _, _ := newTestDashboard(t)
		if _, err := d.SetLocation(ctx, "  "); !model.IsCode(err, model.ErrCodeMissingFields) {
			t.Errorf("err = %v, want MISSING_FIELDS", err)
		}
	})
}

func TestRefresh_MergesLoadedEvents(t *testing.T) {
	d, adapter, _, _ := newTestDashboard(t)
	if _, err := d.store.Add("2024-03-01", model.Event{Title: "Keep"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	adapter.loadEventsFn = func(_ context.Context, username string, store *calendar.Store) error {
		if username != "alice" {
			t.Errorf("username = %q", username)
		}
		store.Merge(model.EventMap{"2024-03-05": {{ID: "r1", Title: "Remote"}}})
		return nil
	}

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if d.store.Len() != 2 {
		t.Errorf("Store.Len = %d, want 2", d.store.Len())
	}
}

func TestRefresh_StaleLoadDiscarded(t *testing.T) {
	d, adapter, _, _ := newTestDashboard(t)

	started := make(chan struct{})
	release := make(chan struct{})
	first := true
	var mu sync.Mutex
	adapter.loadEventsFn = func(ctx context.Context, _ string, store *calendar.Store) error {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			close(started)
			<-release
			store.Merge(model.EventMap{"2024-03-01": {{ID: "old", Title: "Stale"}}})
			return nil
		}
		store.Merge(model.EventMap{"2024-03-02": {{ID: "new", Title: "Fresh"}}})
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- d.Refresh(context.Background()) }()
	<-started

	// 新しい読み込みが古い読み込みを置き換える
	key := TaskKey{User: "alice", Resource: ResourceEvents}
	_, token := d.tasks.Start(context.Background(), key)
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	d.tasks.Finish(key, token)

	if got := d.store.EventsOn("2024-03-01"); len(got) != 0 {
		t.Errorf("古い読み込み結果が反映された: %+v", got)
	}
}

func TestRender(t *testing.T) {
	d, _, _, _ := newTestDashboard(t)
	for _, title := range []string{"a", "b", "c", "d"} {
		if _, err := d.AddEvent(context.Background(), Draft{Title: title, AllDay: true}); err != nil {
			t.Fatalf("AddEvent failed: %v", err)
		}
	}

	month, planner, forecast := d.Render()
	cell, ok := month.CellAt("2024-03-05")
	if !ok || !cell.IsToday || len(cell.Dots) != 3 || cell.More != 1 {
		t.Errorf("セル = %+v", cell)
	}
	if len(planner.AllDay) != 4 {
		t.Errorf("AllDay = %d, want 4", len(planner.AllDay))
	}
	if len(forecast.Daily) != weather.FallbackDays {
		t.Errorf("Daily = %d", len(forecast.Daily))
	}
}

func TestSaveSkippedWhileUnsynced(t *testing.T) {
	ctx := context.Background()
	d, adapter, _, _ := newTestDashboard(t)
	d.MarkUnsynced()

	if _, err := d.AddEvent(ctx, Draft{Title: "Offline", AllDay: true}); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if adapter.saveCount() != 0 {
		t.Fatalf("予定を読み込めていない状態で保存された: %d", adapter.saveCount())
	}
	if d.store.Len() != 1 {
		t.Errorf("変更がメモリ上に保持されていない: Len = %d", d.store.Len())
	}

	// 読み込みが失敗している間は同期されないまま
	adapter.loadEventsFn = func(context.Context, string, *calendar.Store) error {
		return storage.ErrLoadFailed
	}
	if err := d.Refresh(ctx); err == nil {
		t.Fatal("読み込み失敗がRefreshのエラーになっていない")
	}
	if !d.State().Unsynced {
		t.Error("読み込み失敗後にUnsyncedが解除された")
	}

	adapter.loadEventsFn = func(_ context.Context, _ string, store *calendar.Store) error {
		store.Merge(model.EventMap{"2024-02-01": {{ID: "r1", Title: "Remote"}}})
		return nil
	}
	if err := d.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if d.State().Unsynced {
		t.Error("読み込み成功後もUnsyncedのまま")
	}

	if _, err := d.AddEvent(ctx, Draft{Title: "Online", AllDay: true}); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if adapter.saveCount() != 1 {
		t.Fatalf("saveCount = %d, want 1", adapter.saveCount())
	}
	if got := adapter.saves[0]; len(got["2024-02-01"]) != 1 || len(got["2024-03-05"]) != 2 {
		t.Errorf("保存内容に読み込んだ予定とオフラインの変更が含まれない: %+v", got)
	}
}

func TestActivateClearsUnsynced(t *testing.T) {
	d, _, _, _ := newTestDashboard(t)
	d.MarkUnsynced()
	d.Activate("bob")
	if d.State().Unsynced {
		t.Error("Activate後もUnsyncedのまま")
	}
}

func TestShowPreview(t *testing.T) {
	d, adapter, _, _ := newTestDashboard(t)
	d.MoveSelection(-40)
	d.Deactivate()
	d.ShowPreview()

	st := d.State()
	if st.SelectedDate != "2024-03-05" || st.Month != time.March {
		t.Errorf("選択日が今日に戻っていない: %s", st.SelectedDate)
	}
	if len(d.store.EventsOn("2024-03-05")) == 0 {
		t.Error("デモの予定が表示されていない")
	}
	if adapter.saveCount() != 0 {
		t.Errorf("デモの予定が保存された: %d", adapter.saveCount())
	}
}
