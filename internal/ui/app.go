// Package ui はbubbleteaによる端末UIを提供する。
// I/Oはすべてtea.Cmdとして実行し、結果のメッセージをUpdateで画面状態に反映する。
package ui

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/dashboard"
	"github.com/hitoshi/daycast/internal/model"
)

// SessionController は認証操作。*session.Controller が満たす。
type SessionController interface {
	Login(ctx context.Context, username, password string) error
	Signup(ctx context.Context, username, password, confirm string) error
	ResetPassword(ctx context.Context, username, current, newPassword, confirm string) error
	Logout(ctx context.Context) error
	Restore(ctx context.Context) (bool, error)
	CurrentUser() string
}

// Options はAppの依存関係。
type Options struct {
	Session   SessionController
	Dashboard *dashboard.Dashboard
	Logger    *slog.Logger
	// Timeout は1回のI/O操作の上限。
	Timeout time.Duration
}

type screen int

const (
	screenAuth screen = iota
	screenDashboard
)

// dashMode はダッシュボード画面の入力モード。
type dashMode int

const (
	modeNormal dashMode = iota
	modeAdd
	modeEdit
	modeLocation
	modeGate
)

// App はbubbleteaのルートモデル。
type App struct {
	session SessionController
	dash    *dashboard.Dashboard
	logger  *slog.Logger
	timeout time.Duration
	keys    KeyMap

	screen screen
	auth   authForm

	mode        dashMode
	prompt      []textinput.Model
	promptFocus int
	eventIdx    int
	targetID    string

	status    string
	statusErr bool
	width     int
	height    int
}

// NewApp はAppを生成する。初期画面は認証画面。
func NewApp(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &App{
		session: opts.Session,
		dash:    opts.Dashboard,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		keys:    DefaultKeyMap(),
		screen:  screenAuth,
		auth:    newAuthForm(tabLogin),
	}
}

// Init は保存済みセッションの復元を試みる。
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.restoreCmd)
}

// Update はメッセージを画面状態に反映する。
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case weatherTickMsg:
		if a.screen != screenDashboard {
			return a, nil
		}
		return a, a.weatherCmd

	case restoredMsg:
		if msg.err != nil {
			a.setError(msg.err)
			return a, nil
		}
		if !msg.ok {
			return a, nil
		}
		return a, a.enterDashboard("welcome back, " + a.session.CurrentUser())

	case authResultMsg:
		a.auth.busy = false
		if msg.err != nil {
			a.setError(msg.err)
			return a, nil
		}
		if msg.tab == tabForgot {
			a.auth = newAuthForm(tabLogin)
			a.auth.inputs[0].SetValue(msg.username)
			a.auth.setFocus(1)
			a.setStatus("password updated, please log in")
			return a, textinput.Blink
		}
		return a, a.enterDashboard("signed in as " + msg.username)

	case readyMsg:
		return a, nil

	case opResultMsg:
		if msg.err != nil {
			a.setError(msg.err)
		} else if msg.note != "" {
			a.setStatus(msg.note)
		}
		a.clampEventIdx()
		return a, nil

	case loggedOutMsg:
		a.screen = screenAuth
		a.mode = modeNormal
		a.auth = newAuthForm(tabLogin)
		if msg.err != nil {
			a.setError(msg.err)
		} else {
			a.setStatus("logged out")
		}
		return a, textinput.Blink

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.screen == screenAuth {
			return a.updateAuth(msg)
		}
		return a.updateDashboard(msg)
	}

	return a, nil
}

func (a *App) enterDashboard(note string) tea.Cmd {
	a.screen = screenDashboard
	a.mode = modeNormal
	a.eventIdx = 0
	a.setStatus(note)
	return a.initDashboardCmd
}

func (a *App) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		return a, tea.Quit
	}
	cmd, submit := a.auth.update(msg)
	if !submit {
		return a, cmd
	}
	a.auth.busy = true
	a.setStatus("")
	return a, a.authCmd(a.auth.tab, a.auth.values())
}

func (a *App) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.mode {
	case modeGate:
		return a.updateGate(msg)
	case modeAdd, modeEdit, modeLocation:
		return a.updatePrompt(msg)
	}

	k := a.keys
	switch {
	case key.Matches(msg, k.Quit):
		return a, tea.Quit
	case key.Matches(msg, k.Left):
		a.moveSelection(-1)
	case key.Matches(msg, k.Right):
		a.moveSelection(1)
	case key.Matches(msg, k.Up):
		a.moveSelection(-7)
	case key.Matches(msg, k.Down):
		a.moveSelection(7)
	case key.Matches(msg, k.PrevMonth):
		a.dash.ShiftMonth(-1)
	case key.Matches(msg, k.NextMonth):
		a.dash.ShiftMonth(1)
	case key.Matches(msg, k.Today):
		a.dash.GoToday()
		a.eventIdx = 0
	case key.Matches(msg, k.NextEvent):
		a.eventIdx++
		a.clampEventIdx()
	case key.Matches(msg, k.PrevEvent):
		a.eventIdx--
		a.clampEventIdx()
	case key.Matches(msg, k.Add):
		return a, a.openPrompt(modeAdd, "Title", "Time range HH:MM-HH:MM (empty for all day)")
	case key.Matches(msg, k.Edit):
		if e, ok := a.selectedEvent(); ok {
			return a, a.openEdit(e)
		}
		a.setStatus("no event selected")
	case key.Matches(msg, k.Delete):
		if e, ok := a.selectedEvent(); ok {
			return a, a.resolveCmd(e.ID, dashboard.ChoiceDelete, calendar.EventPatch{})
		}
		a.setStatus("no event selected")
	case key.Matches(msg, k.Open):
		if e, ok := a.selectedEvent(); ok {
			a.mode = modeGate
			a.targetID = e.ID
			a.setStatus("d: delete  e: edit  esc: cancel")
			return a, nil
		}
		a.setStatus("no event selected")
	case key.Matches(msg, k.Theme):
		return a, a.themeCmd
	case key.Matches(msg, k.Units):
		return a, a.unitsCmd
	case key.Matches(msg, k.Location):
		return a, a.openPrompt(modeLocation, "City name")
	case key.Matches(msg, k.Refresh):
		return a, a.refreshCmd
	case key.Matches(msg, k.Logout):
		return a, a.logoutCmd
	}
	return a, nil
}

func (a *App) updateGate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := a.targetID
	switch msg.String() {
	case "d":
		a.mode = modeNormal
		return a, a.resolveCmd(id, dashboard.ChoiceDelete, calendar.EventPatch{})
	case "e":
		if e, ok := a.selectedEvent(); ok && e.ID == id {
			return a, a.openEdit(e)
		}
		a.mode = modeNormal
	case "esc", "q":
		a.mode = modeNormal
		a.setStatus("")
	}
	return a, nil
}

func (a *App) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeNormal
		a.prompt = nil
		a.setStatus("")
		return a, nil
	case "tab", "shift+tab":
		return a, a.focusPrompt(a.promptFocus + 1)
	case "enter":
		if a.promptFocus < len(a.prompt)-1 {
			return a, a.focusPrompt(a.promptFocus + 1)
		}
		return a, a.submitPrompt()
	}

	var cmd tea.Cmd
	a.prompt[a.promptFocus], cmd = a.prompt[a.promptFocus].Update(msg)
	return a, cmd
}

func (a *App) openPrompt(mode dashMode, placeholders ...string) tea.Cmd {
	a.mode = mode
	a.prompt = make([]textinput.Model, len(placeholders))
	for i, p := range placeholders {
		in := textinput.New()
		in.Placeholder = p
		in.CharLimit = 120
		in.Width = 48
		a.prompt[i] = in
	}
	return a.focusPrompt(0)
}

func (a *App) openEdit(e model.Event) tea.Cmd {
	a.targetID = e.ID
	cmd := a.openPrompt(modeEdit, "Title (empty keeps current)", "Time range (empty keeps current)")
	a.prompt[0].SetValue(e.Title)
	if !e.AllDay {
		a.prompt[1].SetValue(e.Start + "-" + e.End)
	}
	return cmd
}

func (a *App) focusPrompt(i int) tea.Cmd {
	a.promptFocus = i % len(a.prompt)
	for j := range a.prompt {
		a.prompt[j].Blur()
	}
	return a.prompt[a.promptFocus].Focus()
}

func (a *App) submitPrompt() tea.Cmd {
	values := make([]string, len(a.prompt))
	for i, in := range a.prompt {
		values[i] = strings.TrimSpace(in.Value())
	}
	mode := a.mode
	a.mode = modeNormal
	a.prompt = nil

	switch mode {
	case modeAdd:
		return a.addCmd(dashboard.Draft{
			Title:     values[0],
			TimeRange: values[1],
			AllDay:    values[1] == "",
		})
	case modeEdit:
		patch, err := editPatch(values[0], values[1])
		if err != nil {
			a.setError(err)
			return nil
		}
		return a.resolveCmd(a.targetID, dashboard.ChoiceEdit, patch)
	case modeLocation:
		return a.locationCmd(values[0])
	}
	return nil
}

// editPatch は編集フォームの入力からパッチを組み立てる。
// 空欄の項目は変更しない。
func editPatch(title, timeRange string) (calendar.EventPatch, error) {
	var p calendar.EventPatch
	if title != "" {
		p.Title = &title
	}
	if timeRange != "" {
		start, end, err := calendar.ParseTimeRange(timeRange)
		if err != nil {
			return calendar.EventPatch{}, err
		}
		p.Start, p.End = &start, &end
	}
	return p, nil
}

func (a *App) moveSelection(days int) {
	a.dash.MoveSelection(days)
	a.eventIdx = 0
}

// selectedEvent はプランナーでカーソルが指している予定を返す。
func (a *App) selectedEvent() (model.Event, bool) {
	_, planner, _ := a.dash.Render()
	events := planner.Events()
	if a.eventIdx < 0 || a.eventIdx >= len(events) {
		return model.Event{}, false
	}
	return events[a.eventIdx], true
}

func (a *App) clampEventIdx() {
	if a.dash == nil {
		return
	}
	_, planner, _ := a.dash.Render()
	n := len(planner.Events())
	switch {
	case n == 0 || a.eventIdx < 0:
		a.eventIdx = 0
	case a.eventIdx >= n:
		a.eventIdx = n - 1
	}
}

func (a *App) setStatus(s string) {
	a.status = s
	a.statusErr = false
}

func (a *App) setError(err error) {
	a.status = errorText(err)
	a.statusErr = true
	a.logger.Debug("ui operation failed", slog.String("error", err.Error()))
}

// View は現在の画面を描画する。
func (a *App) View() string {
	s := NewStyles(ThemeByName(a.dash.State().Theme))

	var body string
	if a.screen == screenAuth {
		month, _, _ := a.dash.Render()
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			a.auth.view(s),
			"  ",
			renderMonth(s, month),
		)
	} else {
		body = a.viewDashboard(s)
	}

	status := s.Status.Render(a.status)
	if a.statusErr {
		status = s.StatusErr.Render(a.status)
	}
	header := s.Title.Render("daycast")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}
