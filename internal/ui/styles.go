package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/daycast/internal/dashboard"
)

// Theme は配色。
type Theme struct {
	Name          string
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color
	Primary       lipgloss.Color
	Accent        lipgloss.Color
	Error         lipgloss.Color
	Border        lipgloss.Color
	Selection     lipgloss.Color
}

// Dark は暗い背景向けの配色。
var Dark = Theme{
	Name:          dashboard.ThemeDark,
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),
	Primary:       lipgloss.Color("#4f8cff"),
	Accent:        lipgloss.Color("#7dcfff"),
	Error:         lipgloss.Color("#f7768e"),
	Border:        lipgloss.Color("#3b4261"),
	Selection:     lipgloss.Color("#33467c"),
}

// Light は明るい背景向けの配色。
var Light = Theme{
	Name:          dashboard.ThemeLight,
	Foreground:    lipgloss.Color("#343b58"),
	ForegroundDim: lipgloss.Color("#9699a3"),
	Primary:       lipgloss.Color("#2959aa"),
	Accent:        lipgloss.Color("#166775"),
	Error:         lipgloss.Color("#8c4351"),
	Border:        lipgloss.Color("#c0c4d6"),
	Selection:     lipgloss.Color("#d5d9ea"),
}

// ThemeByName はテーマ名に対応する配色を返す。不明な名前はDark。
func ThemeByName(name string) Theme {
	if name == dashboard.ThemeLight {
		return Light
	}
	return Dark
}

// Styles は描画に使うスタイル一式。
type Styles struct {
	theme Theme

	Title     lipgloss.Style
	Muted     lipgloss.Style
	Panel     lipgloss.Style
	Tab       lipgloss.Style
	TabActive lipgloss.Style
	Cell      lipgloss.Style
	OutCell   lipgloss.Style
	Today     lipgloss.Style
	Selected  lipgloss.Style
	Item      lipgloss.Style
	ItemFocus lipgloss.Style
	Input     lipgloss.Style
	Status    lipgloss.Style
	StatusErr lipgloss.Style
	HelpKey   lipgloss.Style
}

// NewStyles は配色からスタイルを生成する。
func NewStyles(t Theme) Styles {
	return Styles{
		theme: t,

		Title: lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
		Muted: lipgloss.NewStyle().Foreground(t.ForegroundDim),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		Tab:       lipgloss.NewStyle().Foreground(t.ForegroundDim).Padding(0, 1),
		TabActive: lipgloss.NewStyle().Foreground(t.Primary).Bold(true).Underline(true).Padding(0, 1),
		Cell:      lipgloss.NewStyle().Foreground(t.Foreground).Width(cellWidth),
		OutCell:   lipgloss.NewStyle().Foreground(t.ForegroundDim).Width(cellWidth),
		Today:     lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Width(cellWidth),
		Selected:  lipgloss.NewStyle().Foreground(t.Foreground).Background(t.Selection).Bold(true).Width(cellWidth),
		Item:      lipgloss.NewStyle().Foreground(t.Foreground),
		ItemFocus: lipgloss.NewStyle().Foreground(t.Primary).Background(t.Selection).Bold(true),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Primary).
			Padding(0, 1),
		Status:    lipgloss.NewStyle().Foreground(t.ForegroundDim),
		StatusErr: lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		HelpKey:   lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
	}
}

// Theme は生成元の配色を返す。
func (s Styles) Theme() Theme { return s.theme }
