// Package tui renders the experiment summary as a scrollable pager in the
// terminal, for summaries too long to read as plain stdout.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51")).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(0, 1)
)

// pagerModel is the Bubble Tea model behind the summary pager.
type pagerModel struct {
	title    string
	markdown string

	viewport viewport.Model
	ready    bool
}

// NewPager builds a pager over a markdown document.
func NewPager(title, markdown string) tea.Model {
	return pagerModel{title: title, markdown: markdown}
}

func (m pagerModel) Init() tea.Cmd {
	return nil
}

func (m pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		headerH := 1
		footerH := 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerH-footerH)
			m.viewport.SetContent(RenderMarkdown(m.markdown, msg.Width-2))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerH - footerH
			m.viewport.SetContent(RenderMarkdown(m.markdown, msg.Width-2))
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m pagerModel) View() string {
	if !m.ready {
		return "loading..."
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.footerView()
}

func (m pagerModel) headerView() string {
	title := titleStyle.Render(m.title)
	line := strings.Repeat("─", max(0, m.viewport.Width-runewidth.StringWidth(m.title)-2))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, line)
}

func (m pagerModel) footerView() string {
	info := footerStyle.Render(fmt.Sprintf("%3.0f%%  ↑/↓ scroll  q quit", m.viewport.ScrollPercent()*100))
	line := strings.Repeat("─", max(0, m.viewport.Width-runewidth.StringWidth("100%  ↑/↓ scroll  q quit")-2))
	return lipgloss.JoinHorizontal(lipgloss.Center, line, info)
}

// Show runs the pager until the operator quits it.
func Show(title, markdown string) error {
	p := tea.NewProgram(NewPager(title, markdown), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
