// Package dashboard は認証後の画面状態と、予定・天気・設定に対する操作をまとめる。
// UI層はこのパッケージの操作を呼び出し、Renderの結果を描画するだけとする。
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/model"
	"github.com/hitoshi/daycast/internal/storage"
	"github.com/hitoshi/daycast/internal/view"
	"github.com/hitoshi/daycast/internal/weather"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Choice は予定を選択したときの削除・編集ゲートの選択肢。
type Choice int

const (
	ChoiceCancel Choice = iota
	ChoiceDelete
	ChoiceEdit
)

// WeatherSource は天気予報とジオコーディングの取得元。*weather.Client が満たす。
type WeatherSource interface {
	FetchWeather(ctx context.Context, lat, lon float64, units weather.Units) weather.Forecast
	Geocode(ctx context.Context, name string) (*weather.Place, error)
}

// ThemeStore はテーマ設定の保存先。*storage.Preferences が満たす。
type ThemeStore interface {
	Theme(ctx context.Context, fallback string) (string, error)
	SetTheme(ctx context.Context, theme string) error
}

// Location は天気予報の対象地点。Resolvedがfalseの場合は座標を持たない。
type Location struct {
	Name     string
	Lat      float64
	Lon      float64
	Resolved bool
}

// Draft は新規予定の入力内容。TimeRangeは "09:00-10:30" 形式で、AllDayの場合は無視する。
type Draft struct {
	Title     string
	TimeRange string
	AllDay    bool
	Color     string
}

// State は画面状態のスナップショット。
type State struct {
	Username     string
	SelectedDate string
	Year         int
	Month        time.Month
	Theme        string
	Units        weather.Units
	Location     Location
	Forecast     weather.Forecast
	// Unsynced は保存済みの予定を読み込めていないことを示す。trueの間は保存しない。
	Unsynced bool
}

// Options はDashboardの依存関係と初期値。
type Options struct {
	Adapter  storage.Adapter
	Store    *calendar.Store
	Weather  WeatherSource
	Themes   ThemeStore
	Logger   *slog.Logger
	Location Location
	Units    weather.Units
	Theme    string
	Now      func() time.Time
}

// Dashboard はApplication View Stateを保持し、操作を直列化する。
type Dashboard struct {
	adapter storage.Adapter
	store   *calendar.Store
	weather WeatherSource
	themes  ThemeStore
	logger  *slog.Logger
	now     func() time.Time
	tasks   *TaskGroup

	initOnce sync.Once

	mu    sync.RWMutex
	state State
}

// New はDashboardを生成する。選択日と表示月は今日で初期化する。
func New(opts Options) *Dashboard {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Units == "" {
		opts.Units = weather.Celsius
	}
	if opts.Theme != ThemeLight {
		opts.Theme = ThemeDark
	}

	today := opts.Now()
	return &Dashboard{
		adapter: opts.Adapter,
		store:   opts.Store,
		weather: opts.Weather,
		themes:  opts.Themes,
		logger:  opts.Logger,
		now:     opts.Now,
		tasks:   NewTaskGroup(),
		state: State{
			SelectedDate: calendar.ToDateKey(today),
			Year:         today.Year(),
			Month:        today.Month(),
			Theme:        opts.Theme,
			Units:        opts.Units,
			Location:     opts.Location,
			Forecast:     weather.Fallback(today, opts.Units),
		},
	}
}

// Activate は認証済みユーザーを設定し、選択日を今日に戻す。
// session.ControllerのOnAuthenticatedから呼ばれる。
func (d *Dashboard) Activate(username string) {
	d.tasks.CancelAll()

	today := d.now()
	d.mu.Lock()
	d.state.Username = username
	d.state.SelectedDate = calendar.ToDateKey(today)
	d.state.Year = today.Year()
	d.state.Month = today.Month()
	d.state.Unsynced = false
	d.mu.Unlock()
}

// MarkUnsynced は保存済みの予定を読み込めなかったことを記録する。
// Refreshが成功するまで変更はメモリ上にのみ保持する。
func (d *Dashboard) MarkUnsynced() {
	d.mu.Lock()
	d.state.Unsynced = true
	d.mu.Unlock()
}

// Deactivate はログアウト時に実行中の処理を止めてユーザーを外す。
func (d *Dashboard) Deactivate() {
	d.tasks.CancelAll()
	d.mu.Lock()
	d.state.Username = ""
	d.state.Unsynced = false
	d.mu.Unlock()
}

// ShowPreview はログアウト後の認証画面に出すデモの予定をストアに入れ、選択日を今日に戻す。
func (d *Dashboard) ShowPreview() {
	today := d.now()
	d.store.ReplaceAll(calendar.NewDemoStore(today).Snapshot())

	d.mu.Lock()
	d.state.SelectedDate = calendar.ToDateKey(today)
	d.state.Year = today.Year()
	d.state.Month = today.Month()
	d.mu.Unlock()
}

// Init は保存済みテーマの読み込みと初回の天気取得を行う。
// 2回目以降の呼び出しは何もせずfalseを返す。
func (d *Dashboard) Init(ctx context.Context) bool {
	ran := false
	d.initOnce.Do(func() {
		ran = true
		if d.themes != nil {
			d.mu.RLock()
			fallback := d.state.Theme
			d.mu.RUnlock()

			theme, err := d.themes.Theme(ctx, fallback)
			if err != nil {
				d.logger.Warn("failed to load theme", slog.String("error", err.Error()))
			} else {
				d.mu.Lock()
				d.state.Theme = theme
				d.mu.Unlock()
			}
		}
		d.RefreshWeather(ctx)
		d.logger.Info("dashboard initialized", slog.String("username", d.State().Username))
	})
	return ran
}

// State は現在の画面状態のコピーを返す。
func (d *Dashboard) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Render はUIが描画する月表示・プランナー・天気予報を返す。
func (d *Dashboard) Render() (view.Month, view.Planner, weather.Forecast) {
	s := d.State()
	month := view.BuildMonth(s.Year, s.Month, d.store, s.SelectedDate, d.now())
	planner := view.BuildPlanner(s.SelectedDate, d.store)
	return month, planner, s.Forecast
}

// Refresh は現在のユーザーの予定を永続化層から読み直してストアに重ねる。
// より新しい読み込みが開始された場合、この読み込みの結果は破棄する。
func (d *Dashboard) Refresh(ctx context.Context) error {
	user := d.State().Username
	if user == "" {
		return nil
	}

	key := TaskKey{User: user, Resource: ResourceEvents}
	taskCtx, token := d.tasks.Start(ctx, key)
	defer d.tasks.Finish(key, token)

	loaded := calendar.NewStore()
	if err := d.adapter.LoadEvents(taskCtx, user, loaded); err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	if !d.tasks.Current(key, token) {
		d.logger.Debug("discarding stale events load", slog.String("username", user))
		return nil
	}
	d.store.Merge(loaded.Snapshot())

	d.mu.Lock()
	d.state.Unsynced = false
	d.mu.Unlock()
	return nil
}

// AddEvent は選択日に予定を追加して保存する。
func (d *Dashboard) AddEvent(ctx context.Context, draft Draft) (model.Event, error) {
	e := model.Event{
		Title:  draft.Title,
		AllDay: draft.AllDay,
		Color:  draft.Color,
		Start:  model.AllDayStart,
		End:    model.AllDayEnd,
	}
	if !draft.AllDay {
		start, end, err := calendar.ParseTimeRange(draft.TimeRange)
		if err != nil {
			return model.Event{}, err
		}
		e.Start, e.End = start, end
	}

	added, err := d.store.Add(d.State().SelectedDate, e)
	if err != nil {
		return model.Event{}, err
	}
	d.save(ctx)
	return added, nil
}

// EditEvent は選択日の予定を部分更新する。変更がなかった場合は保存しない。
func (d *Dashboard) EditEvent(ctx context.Context, id string, patch calendar.EventPatch) (bool, error) {
	changed, err := d.store.Edit(d.State().SelectedDate, id, patch)
	if err != nil {
		return false, err
	}
	if changed {
		d.save(ctx)
	}
	return changed, nil
}

// DeleteEvent は選択日の予定を削除して保存する。
func (d *Dashboard) DeleteEvent(ctx context.Context, id string) error {
	if err := d.store.Delete(d.State().SelectedDate, id); err != nil {
		return err
	}
	d.save(ctx)
	return nil
}

// ResolveEvent は削除・編集ゲートの選択結果を適用する。
// ChoiceEditの場合のみpatchを使う。変更が発生したかどうかを返す。
func (d *Dashboard) ResolveEvent(ctx context.Context, id string, choice Choice, patch calendar.EventPatch) (bool, error) {
	switch choice {
	case ChoiceDelete:
		if err := d.DeleteEvent(ctx, id); err != nil {
			return false, err
		}
		return true, nil
	case ChoiceEdit:
		return d.EditEvent(ctx, id, patch)
	default:
		return false, nil
	}
}

// save はストア全体を現在のユーザーとして保存する。
// 保存中に新しい保存が始まった場合、古い保存はキャンセルされる。
func (d *Dashboard) save(ctx context.Context) {
	st := d.State()
	user := st.Username
	if user == "" {
		return
	}
	// 読み込めていない状態で保存すると保存先の予定を上書きしてしまう
	if st.Unsynced {
		d.logger.Warn("skipping save until events are loaded",
			slog.String("username", user),
			slog.String("resource", "events"),
		)
		return
	}

	key := TaskKey{User: user, Resource: ResourceSave}
	taskCtx, token := d.tasks.Start(ctx, key)
	defer d.tasks.Finish(key, token)

	if err := d.adapter.SaveEvents(taskCtx, user, d.store.Snapshot()); err != nil {
		if errors.Is(err, context.Canceled) && !d.tasks.Current(key, token) {
			return
		}
		d.logger.Warn("failed to save events",
			slog.String("error", err.Error()),
			slog.String("username", user),
			slog.String("resource", "events"),
		)
	}
}

// SelectDate は選択日を変更し、表示月をその日の月に合わせる。
func (d *Dashboard) SelectDate(key string) error {
	t, err := calendar.ParseDateKey(key, d.now().Location())
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.SelectedDate = key
	d.state.Year = t.Year()
	d.state.Month = t.Month()
	return nil
}

// MoveSelection は選択日をdays日ずらす。
func (d *Dashboard) MoveSelection(days int) {
	loc := d.now().Location()
	t, err := calendar.ParseDateKey(d.State().SelectedDate, loc)
	if err != nil {
		t = d.now()
	}
	_ = d.SelectDate(calendar.ToDateKey(t.AddDate(0, 0, days)))
}

// ShiftMonth は表示月をdelta月ずらす。選択日は変更しない。
func (d *Dashboard) ShiftMonth(delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	first := time.Date(d.state.Year, d.state.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	d.state.Year = first.Year()
	d.state.Month = first.Month()
}

// GoToday は選択日と表示月を今日に戻す。
func (d *Dashboard) GoToday() {
	_ = d.SelectDate(calendar.ToDateKey(d.now()))
}

// ToggleTheme はテーマを切り替えて保存する。保存に失敗しても画面上の切り替えは維持する。
func (d *Dashboard) ToggleTheme(ctx context.Context) string {
	d.mu.Lock()
	if d.state.Theme == ThemeDark {
		d.state.Theme = ThemeLight
	} else {
		d.state.Theme = ThemeDark
	}
	theme := d.state.Theme
	d.mu.Unlock()

	if d.themes != nil {
		if err := d.themes.SetTheme(ctx, theme); err != nil {
			d.logger.Warn("failed to persist theme",
				slog.String("error", err.Error()),
				slog.String("theme", theme),
			)
		}
	}
	return theme
}

// ToggleUnits は気温の単位を切り替えて天気を取得し直す。
func (d *Dashboard) ToggleUnits(ctx context.Context) weather.Units {
	d.mu.Lock()
	d.state.Units = d.state.Units.Toggle()
	units := d.state.Units
	d.mu.Unlock()

	d.RefreshWeather(ctx)
	return units
}

// SetLocation は地名をジオコーディングして天気の対象地点を変更し、天気を取得し直す。
// 該当なしや取得失敗の場合は入力された地名だけを座標なしで保持する。
func (d *Dashboard) SetLocation(ctx context.Context, name string) (Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return d.State().Location, model.NewMissingFieldsError("location")
	}

	key := TaskKey{User: d.State().Username, Resource: ResourceGeocode}
	taskCtx, token := d.tasks.Start(ctx, key)
	defer d.tasks.Finish(key, token)

	loc := Location{Name: name}
	place, err := d.weather.Geocode(taskCtx, name)
	if !d.tasks.Current(key, token) {
		return d.State().Location, nil
	}
	switch {
	case err != nil:
		d.logger.Warn("location lookup failed, keeping name only",
			slog.String("error", err.Error()),
			slog.String("place", name),
		)
	case place == nil:
		d.logger.Info("location not found, keeping name only", slog.String("place", name))
	default:
		loc = Location{Name: place.DisplayName, Lat: place.Lat, Lon: place.Lon, Resolved: true}
	}

	d.mu.Lock()
	d.state.Location = loc
	d.mu.Unlock()

	d.RefreshWeather(ctx)
	return loc, nil
}

// RefreshWeather は現在の地点と単位で天気を取得する。座標がない場合は代替予報を使う。
// より新しい取得が開始された場合、この結果は破棄してfalseを返す。
func (d *Dashboard) RefreshWeather(ctx context.Context) bool {
	s := d.State()

	key := TaskKey{User: s.Username, Resource: ResourceWeather}
	taskCtx, token := d.tasks.Start(ctx, key)
	defer d.tasks.Finish(key, token)

	var forecast weather.Forecast
	if s.Location.Resolved {
		forecast = d.weather.FetchWeather(taskCtx, s.Location.Lat, s.Location.Lon, s.Units)
	} else {
		forecast = weather.Fallback(d.now(), s.Units)
	}

	if !d.tasks.Current(key, token) {
		d.logger.Debug("discarding stale forecast", slog.String("place", s.Location.Name))
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Forecast = forecast
	return true
}
