package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/daycast/internal/model"
	"github.com/hitoshi/daycast/internal/view"
	"github.com/hitoshi/daycast/internal/weather"
)

// cellWidth は月表示の1セルの幅。日付2桁と予定インジケーター3つが収まる。
const cellWidth = 7

var weekdayHeader = []string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

// renderMonth は6週×7日のグリッドを描画する。
func renderMonth(s Styles, m view.Month) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(m.Title()) + "\n")

	header := make([]string, len(weekdayHeader))
	for i, w := range weekdayHeader {
		header[i] = s.Muted.Width(cellWidth).Render(w)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...) + "\n")

	for _, week := range m.Weeks() {
		row := make([]string, len(week))
		for i, c := range week {
			row[i] = renderCell(s, c)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...) + "\n")
	}
	return s.Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func renderCell(s Styles, c view.Cell) string {
	style := s.Cell
	switch {
	case c.IsSelected:
		style = s.Selected
	case c.IsToday:
		style = s.Today
	case !c.InMonth:
		style = s.OutCell
	}

	var dots strings.Builder
	for _, color := range c.Dots {
		dots.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("•"))
	}
	if c.More > 0 {
		dots.WriteString("+")
	}
	return style.Render(fmt.Sprintf("%2d", c.Day) + dots.String())
}

// renderPlanner は選択日の予定一覧を描画する。cursorの予定を強調する。
func renderPlanner(s Styles, p view.Planner, cursor int) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(p.Key) + "\n")
	if p.Empty() {
		b.WriteString(s.Muted.Render("No events. Press a to add one."))
		return s.Panel.Width(40).Render(b.String())
	}

	for i, e := range p.Events() {
		line := eventLine(e)
		style := s.Item
		if i == cursor {
			style = s.ItemFocus
		}
		marker := lipgloss.NewStyle().Foreground(lipgloss.Color(e.Color)).Render("▌")
		b.WriteString(marker + " " + style.Render(line) + "\n")
	}
	return s.Panel.Width(40).Render(strings.TrimRight(b.String(), "\n"))
}

func eventLine(e model.Event) string {
	if e.AllDay {
		return "all day      " + e.Title
	}
	return e.Start + "-" + e.End + "  " + e.Title
}

// renderForecast は現在の天気と日別予報を1行ずつ描画する。
func renderForecast(s Styles, f weather.Forecast, place string) string {
	var b strings.Builder
	symbol := f.Units.Symbol()

	label, icon := weather.Describe(f.Current.Code)
	title := "Weather"
	if place != "" {
		title += " · " + place
	}
	b.WriteString(s.Title.Render(title) + "\n")
	b.WriteString(fmt.Sprintf("%s %.0f%s %s", icon, f.Current.Temperature, symbol, label))
	if f.Source == weather.SourceFallback {
		b.WriteString(s.Muted.Render("  (sample data)"))
	}
	b.WriteString("\n")

	days := make([]string, 0, len(f.Daily))
	for _, d := range f.Daily {
		_, icon := weather.Describe(d.Code)
		day := d.Date
		if len(day) == len("2006-01-02") {
			day = day[5:]
		}
		days = append(days, lipgloss.NewStyle().Width(10).Render(
			fmt.Sprintf("%s\n%s %.0f/%.0f", day, icon, d.Max, d.Min),
		))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, days...))
	return s.Panel.Render(b.String())
}

func (a *App) viewDashboard(s Styles) string {
	state := a.dash.State()
	month, planner, forecast := a.dash.Render()

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		renderMonth(s, month),
		" ",
		renderPlanner(s, planner, a.eventIdx),
	)

	parts := []string{
		s.Muted.Render("signed in as " + state.Username),
		top,
		renderForecast(s, forecast, state.Location.Name),
	}
	if len(a.prompt) > 0 {
		parts = append(parts, a.viewPrompt(s))
	}
	parts = append(parts, a.viewHelp(s))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a *App) viewPrompt(s Styles) string {
	title := map[dashMode]string{
		modeAdd:      "New event",
		modeEdit:     "Edit event",
		modeLocation: "Location",
	}[a.mode]

	lines := []string{s.Title.Render(title)}
	for _, in := range a.prompt {
		lines = append(lines, in.View())
	}
	lines = append(lines, s.Muted.Render("enter: next/submit  esc: cancel"))
	return s.Input.Render(strings.Join(lines, "\n"))
}

func (a *App) viewHelp(s Styles) string {
	var parts []string
	for _, b := range a.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, s.HelpKey.Render(h.Key)+" "+s.Muted.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
