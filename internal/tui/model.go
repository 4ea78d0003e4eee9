// Package tui provides the interactive run-history browser.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/termscript/termscript/internal/history"
)

// viewState represents the current view of the browser.
type viewState int

const (
	stateList viewState = iota
	stateDetail
)

// Store is the subset of the history store the browser needs.
type Store interface {
	ListRuns(limit int) ([]history.Run, error)
	Steps(runID string) ([]history.StepRow, error)
}

// Model is the Bubble Tea model for the history browser.
type Model struct {
	store Store
	limit int

	runs     []history.Run
	steps    []history.StepRow
	selected int

	width  int
	height int
	state  viewState
	err    error

	keys   keyMap
	styles Styles
}

// NewModel creates a browser over the given store. limit caps how many
// runs are listed.
func NewModel(store Store, limit int) Model {
	return Model{
		store:  store,
		limit:  limit,
		keys:   defaultKeyMap(),
		styles: DefaultStyles(),
	}
}

type runsLoadedMsg struct {
	runs []history.Run
	err  error
}

type stepsLoadedMsg struct {
	steps []history.StepRow
	err   error
}

func (m Model) Init() tea.Cmd {
	return m.loadRuns
}

func (m Model) loadRuns() tea.Msg {
	runs, err := m.store.ListRuns(m.limit)
	return runsLoadedMsg{runs: runs, err: err}
}

func (m Model) loadSteps(runID string) tea.Cmd {
	return func() tea.Msg {
		steps, err := m.store.Steps(runID)
		return stepsLoadedMsg{steps: steps, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case runsLoadedMsg:
		m.runs, m.err = msg.runs, msg.err
		if m.selected >= len(m.runs) {
			m.selected = 0
		}
		return m, nil

	case stepsLoadedMsg:
		m.steps, m.err = msg.steps, msg.err
		m.state = stateDetail
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Up):
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}

		case key.Matches(msg, m.keys.Down):
			if m.state == stateList && m.selected < len(m.runs)-1 {
				m.selected++
			}

		case key.Matches(msg, m.keys.Enter):
			if m.state == stateList && len(m.runs) > 0 {
				return m, m.loadSteps(m.runs[m.selected].ID)
			}

		case key.Matches(msg, m.keys.Back):
			if m.state == stateDetail {
				m.state = stateList
				m.steps = nil
			}

		case key.Matches(msg, m.keys.Reload):
			return m, m.loadRuns
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.err != nil {
		return m.styles.Fail.Render("error: "+m.err.Error()) + "\n"
	}
	if m.state == stateDetail {
		return m.detailView()
	}
	return m.listView()
}

func (m Model) listView() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Run history"))
	b.WriteString("\n")

	if len(m.runs) == 0 {
		b.WriteString(m.styles.Dim.Render("no recorded runs"))
		b.WriteString("\n")
	}
	for i, r := range m.runs {
		verdict := m.styles.Pass.Render("pass")
		if !r.Success {
			verdict = m.styles.Fail.Render("fail")
		}
		line := fmt.Sprintf("%-24s %s %s %s",
			truncate(r.ScriptName, 24),
			verdict,
			m.styles.Dim.Render(r.StartedAt.Local().Format("2006-01-02 15:04:05")),
			m.styles.Dim.Render(r.Duration.Round(time.Millisecond).String()))

		if i == m.selected {
			b.WriteString(m.styles.Selected.Render("> " + line))
		} else {
			b.WriteString(m.styles.Item.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Help.Render("↑/↓ select • enter steps • r reload • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) detailView() string {
	var b strings.Builder

	run := m.currentRun()
	if run != nil {
		b.WriteString(m.styles.Header.Render(fmt.Sprintf("%s - run %s", run.ScriptName, run.ID)))
		b.WriteString("\n")
		if run.FirstError != "" {
			b.WriteString(m.styles.Fail.Render(run.FirstError))
			b.WriteString("\n")
		}
	}

	for _, st := range m.steps {
		mark := m.styles.Pass.Render("✓")
		if !st.Success {
			mark = m.styles.Fail.Render("✗")
		}
		fmt.Fprintf(&b, "  %s %2d %-12s %s\n",
			mark, st.Index+1, st.Kind,
			m.styles.Dim.Render(st.Duration.Round(time.Millisecond).String()))
		if st.Error != "" {
			fmt.Fprintf(&b, "       %s\n", m.styles.Fail.Render(st.Error))
		}
	}
	if len(m.steps) == 0 {
		b.WriteString(m.styles.Dim.Render("  no recorded steps"))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Help.Render("esc back • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) currentRun() *history.Run {
	if m.selected < 0 || m.selected >= len(m.runs) {
		return nil
	}
	return &m.runs[m.selected]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

// Run starts the browser and blocks until the user quits.
func Run(store Store, limit int) error {
	p := tea.NewProgram(NewModel(store, limit), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
