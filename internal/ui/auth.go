package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// authTab は認証画面のタブ。
type authTab int

const (
	tabLogin authTab = iota
	tabSignup
	tabForgot
)

var authTabs = []struct {
	title  string
	fields []string
}{
	tabLogin:  {"Login", []string{"Username", "Password"}},
	tabSignup: {"Sign up", []string{"Username", "Password", "Confirm password"}},
	tabForgot: {"Forgot password", []string{"Username", "Current password", "New password", "Confirm new password"}},
}

// authForm はログイン・新規登録・パスワード再設定の入力フォーム。
type authForm struct {
	tab    authTab
	inputs []textinput.Model
	focus  int
	busy   bool
}

func newAuthForm(tab authTab) authForm {
	fields := authTabs[tab].fields
	inputs := make([]textinput.Model, len(fields))
	for i, label := range fields {
		in := textinput.New()
		in.Placeholder = label
		in.CharLimit = 64
		in.Prompt = ""
		if i > 0 {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		inputs[i] = in
	}
	inputs[0].Focus()
	return authForm{tab: tab, inputs: inputs}
}

// values は入力値をフィールド順に返す。ユーザー名のみ前後の空白を除く。
func (f authForm) values() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		out[i] = in.Value()
	}
	out[0] = strings.TrimSpace(out[0])
	return out
}

// setFocus はi番目の入力にフォーカスを移す。
func (f *authForm) setFocus(i int) tea.Cmd {
	n := len(f.inputs)
	f.focus = ((i % n) + n) % n
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	return f.inputs[f.focus].Focus()
}

// switchTab は次のタブに切り替える。入力中のユーザー名は引き継ぐ。
func (f *authForm) switchTab() {
	username := f.inputs[0].Value()
	next := newAuthForm((f.tab + 1) % authTab(len(authTabs)))
	next.inputs[0].SetValue(username)
	*f = next
}

// update はフォーム内のキー操作を処理する。送信された場合はsubmit=trueを返す。
func (f *authForm) update(msg tea.KeyMsg) (cmd tea.Cmd, submit bool) {
	if f.busy {
		return nil, false
	}
	switch msg.String() {
	case "tab", "down":
		return f.setFocus(f.focus + 1), false
	case "shift+tab", "up":
		return f.setFocus(f.focus - 1), false
	case "ctrl+n":
		f.switchTab()
		return textinput.Blink, false
	case "enter":
		if f.focus < len(f.inputs)-1 {
			return f.setFocus(f.focus + 1), false
		}
		return nil, true
	}

	var c tea.Cmd
	f.inputs[f.focus], c = f.inputs[f.focus].Update(msg)
	return c, false
}

func (f authForm) view(s Styles) string {
	var tabs []string
	for i, t := range authTabs {
		style := s.Tab
		if authTab(i) == f.tab {
			style = s.TabActive
		}
		tabs = append(tabs, style.Render(t.title))
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n\n")
	for i, in := range f.inputs {
		label := s.Muted.Render(authTabs[f.tab].fields[i])
		if i == f.focus {
			label = s.Title.Render(authTabs[f.tab].fields[i])
		}
		b.WriteString(label + "\n" + in.View() + "\n\n")
	}
	if f.busy {
		b.WriteString(s.Muted.Render("working..."))
	} else {
		b.WriteString(s.Muted.Render("tab: next field  ctrl+n: switch mode  enter: submit  esc: quit"))
	}
	return s.Panel.Render(b.String())
}
