// Package ui is the interactive terminal surface: a Timer tab to start a
// temporary unblock and a Config tab to add domains.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eliteGoblin/focusd/site_mon/internal/control"
	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// PollInterval is how often the surface refreshes from the resident.
const PollInterval = time.Second

const requestTimeout = 5 * time.Second

// Backend is the resident as seen by the surface. control.Client implements it.
type Backend interface {
	State(ctx context.Context) (domain.Snapshot, error)
	StartTimer(ctx context.Context, minutes string) (domain.Snapshot, error)
	AddDomains(ctx context.Context, domains ...string) (*control.AddResult, error)
	Hide(ctx context.Context) (domain.Snapshot, error)
}

type tab int

const (
	tabTimer tab = iota
	tabConfig
)

type (
	tickMsg  time.Time
	stateMsg struct {
		snap domain.Snapshot
		err  error
	}
	actionMsg struct {
		snap domain.Snapshot
		note string
		err  error
	}
	closedMsg struct{}
)

// Model is the bubbletea model for the surface.
type Model struct {
	backend Backend
	version string

	tab      tab
	duration textinput.Model
	domain   textinput.Model

	snap     domain.Snapshot
	loaded   bool
	note     string
	err      error
	closing  bool
	interval time.Duration
}

// NewModel creates the surface model.
func NewModel(backend Backend, version string) Model {
	duration := textinput.New()
	duration.Prompt = "Duration (minutes): "
	duration.Placeholder = domain.DefaultDurationMinutes
	duration.CharLimit = 6
	duration.Focus()

	dom := textinput.New()
	dom.Prompt = "Domain: "
	dom.Placeholder = "example.com"
	dom.CharLimit = 253

	return Model{
		backend:  backend,
		version:  version,
		tab:      tabTimer,
		duration: duration,
		domain:   dom,
		interval: PollInterval,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.fetchState, m.tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.closing {
				return m, tea.Quit
			}
			m.closing = true
			return m, m.hide
		case tea.KeyTab, tea.KeyShiftTab:
			m.switchTab()
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}

	case tickMsg:
		if m.closing {
			return m, nil
		}
		return m, tea.Batch(m.fetchState, m.tick())

	case stateMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.apply(msg.snap)
		return m, nil

	case actionMsg:
		m.err = msg.err
		m.note = msg.note
		if msg.err == nil {
			m.apply(msg.snap)
		}
		return m, nil

	case closedMsg:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	if m.tab == tabTimer {
		m.duration, cmd = m.duration.Update(msg)
	} else {
		m.domain, cmd = m.domain.Update(msg)
	}
	return m, cmd
}

func (m *Model) apply(s domain.Snapshot) {
	if !m.loaded && m.duration.Value() == "" {
		m.duration.SetValue(s.DurationMinutes)
	}
	m.snap = s
	m.loaded = true
}

func (m *Model) switchTab() {
	if m.tab == tabTimer {
		m.tab = tabConfig
		m.duration.Blur()
		m.domain.Focus()
		return
	}
	m.tab = tabTimer
	m.domain.Blur()
	m.duration.Focus()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.tab == tabTimer {
		minutes := strings.TrimSpace(m.duration.Value())
		return m, m.startTimer(minutes)
	}

	name := strings.TrimSpace(m.domain.Value())
	if name == "" {
		return m, nil
	}
	m.domain.Reset()
	return m, m.addDomain(name)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetchState() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	snap, err := m.backend.State(ctx)
	return stateMsg{snap: snap, err: err}
}

func (m Model) startTimer(minutes string) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := backend.StartTimer(ctx, minutes)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{snap: snap, note: fmt.Sprintf("Unblocked for %s minutes", minutes)}
	}
}

func (m Model) addDomain(name string) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := backend.AddDomains(ctx, name)
		if err != nil {
			return actionMsg{err: err}
		}
		note := fmt.Sprintf("%s is already blocked", name)
		if len(res.Added) > 0 {
			note = fmt.Sprintf("Added %s", name)
		}
		if res.Warning != "" {
			return actionMsg{snap: res.State, note: note, err: fmt.Errorf("saved, but %s", res.Warning)}
		}
		return actionMsg{snap: res.State, note: note}
	}
}

// hide reports the surface closing; the resident persists config on hide.
func (m Model) hide() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	_, _ = m.backend.Hide(ctx)
	return closedMsg{}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Focus"))
	b.WriteString("\n\n")
	b.WriteString(m.tabs())
	b.WriteString("\n\n")

	if m.tab == tabTimer {
		b.WriteString(m.timerView())
	} else {
		b.WriteString(m.configView())
	}

	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(errorMessageStyle("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.note != "" {
		b.WriteString(statusMessageStyle(m.note))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("tab: switch • enter: confirm • esc: hide"))

	return docStyle.Render(b.String())
}

func (m Model) tabs() string {
	timer, config := inactiveTabStyle, inactiveTabStyle
	if m.tab == tabTimer {
		timer = activeTabStyle
	} else {
		config = activeTabStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, timer.Render("Timer"), config.Render("Config"))
}

func (m Model) timerView() string {
	var b strings.Builder
	b.WriteString(statusLine(m.snap))
	b.WriteString("\n")
	b.WriteString(clockStyle.Render(m.clock()))
	b.WriteString("\n")
	b.WriteString(m.duration.View())
	if m.snap.LastError != "" {
		b.WriteString("\n")
		b.WriteString(errorMessageStyle(m.snap.LastError))
	}
	return b.String()
}

func (m Model) configView() string {
	var b strings.Builder
	b.WriteString(m.domain.View())
	b.WriteString("\n\n")
	b.WriteString(listStyle.Render(strings.Join(m.snap.Domains, "\n")))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("version " + m.version))
	return b.String()
}

func (m Model) clock() string {
	if m.snap.Remaining == "" {
		return domain.FormatClock(0)
	}
	return m.snap.Remaining
}

func statusLine(s domain.Snapshot) string {
	switch {
	case s.TimerState == domain.TimerRunning:
		return unblockedStyle.Render("Temporarily unblocked")
	case s.BlockState == domain.StateBlocked:
		return blockedStyle.Render("Blocked")
	case s.BlockState == "":
		return helpStyle.Render("Connecting...")
	default:
		return unblockedStyle.Render("Not blocked")
	}
}

// Run shows the surface until the user closes it.
func Run(ctx context.Context, backend Backend, version string) error {
	_, err := tea.NewProgram(NewModel(backend, version), tea.WithContext(ctx)).Run()
	return err
}
