package ui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/daycast/internal/calendar"
	"github.com/hitoshi/daycast/internal/dashboard"
	"github.com/hitoshi/daycast/internal/model"
)

// weatherTickMsg は定期的な天気更新の合図。cronからProgram.Sendで送られる。
type weatherTickMsg struct{}

type authResultMsg struct {
	tab      authTab
	username string
	err      error
}

type restoredMsg struct {
	ok  bool
	err error
}

type readyMsg struct{}

type opResultMsg struct {
	note string
	err  error
}

type loggedOutMsg struct {
	err error
}

// withTimeout は1回のI/O用のcontextを生成する。
func (a *App) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func (a *App) authCmd(tab authTab, values []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.withTimeout()
		defer cancel()

		username := values[0]
		var err error
		switch tab {
		case tabLogin:
			err = a.session.Login(ctx, username, values[1])
		case tabSignup:
			err = a.session.Signup(ctx, username, values[1], values[2])
		case tabForgot:
			err = a.session.ResetPassword(ctx, username, values[1], values[2], values[3])
		}
		return authResultMsg{tab: tab, username: username, err: err}
	}
}

func (a *App) restoreCmd() tea.Msg {
	ctx, cancel := a.withTimeout()
	defer cancel()
	ok, err := a.session.Restore(ctx)
	return restoredMsg{ok: ok, err: err}
}

func (a *App) initDashboardCmd() tea.Msg {
	ctx, cancel := a.withTimeout()
	defer cancel()
	a.dash.Init(ctx)
	return readyMsg{}
}

func (a *App) refreshCmd() tea.Msg {
	ctx, cancel := a.withTimeout()
	defer cancel()
	if err := a.dash.Refresh(ctx); err != nil {
		return opResultMsg{err: err}
	}
	a.dash.RefreshWeather(ctx)
	return opResultMsg{note: "refreshed"}
}

func (a *App) weatherCmd() tea.Msg {
	ctx, cancel := a.withTimeout()
	defer cancel()
	a.dash.RefreshWeather(ctx)
	return readyMsg{}
}

func (a *App) addCmd(draft dashboard.Draft) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.withTimeout()
		defer cancel()
		e, err := a.dash.AddEvent(ctx, draft)
		if err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{note: "added " + e.Title}
	}
}

func (a *App) resolveCmd(id string, choice dashboard.Choice, patch calendar.EventPatch) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.withTimeout()
		defer cancel()
		changed, err := a.dash.ResolveEvent(ctx, id, choice, patch)
		switch {
		case err != nil:
			return opResultMsg{err: err}
		case choice == dashboard.ChoiceDelete:
			return opResultMsg{note: "deleted"}
		case changed:
			return opResultMsg{note: "updated"}
		default:
			return opResultMsg{note: "no changes"}
		}
	}
}

func (a *App) themeCmd() tea.Msg {
	ctx, cancel := a.withTimeout()
	defer cancel()
	return opResultMsg{note: "theme: " + a.dash.ToggleTheme(ctx)}
}

func (a *App) unitsCmd() tea.Msg {
	ctx, cancel := a.withTimeout()
	defer cancel()
	return opResultMsg{note: "units: " + string(a.dash.ToggleUnits(ctx))}
}

func (a *App) locationCmd(name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.withTimeout()
		defer cancel()
		loc, err := a.dash.SetLocation(ctx, name)
		if err != nil {
			return opResultMsg{err: err}
		}
		if !loc.Resolved {
			return opResultMsg{note: "location not found, showing sample forecast for " + loc.Name}
		}
		return opResultMsg{note: "location: " + loc.Name}
	}
}

func (a *App) logoutCmd() tea.Msg {
	ctx, cancel := a.withTimeout()
	defer cancel()
	a.dash.Deactivate()
	err := a.session.Logout(ctx)
	a.dash.ShowPreview()
	return loggedOutMsg{err: err}
}

// errorText はステータス行に表示するエラー文言を返す。
func errorText(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Action != "" {
			return apiErr.Message + " " + apiErr.Action
		}
		return apiErr.Message
	}
	return err.Error()
}

// defaultTimeout はTimeout未指定時の1回のI/Oの上限。
const defaultTimeout = 20 * time.Second
