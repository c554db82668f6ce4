package ui

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pupperjs/core-sub000/cmd/pupper/internal/build"
)

// FileStatus is the state of one file on the dashboard
type FileStatus int

const (
	StatusPending FileStatus = iota
	StatusOK
	StatusCached
	StatusFailed
)

// FileRow is one line of the dashboard
type FileRow struct {
	Source   string
	Status   FileStatus
	Duration time.Duration
	Err      error
}

// maxEvents bounds the activity log
const maxEvents = 6

// KeyMap defines the dashboard shortcuts
type KeyMap struct {
	Rebuild key.Binding
	Errors  key.Binding
	Quit    key.Binding
}

var DefaultKeyMap = KeyMap{
	Rebuild: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rebuild"),
	),
	Errors: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "toggle errors"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "quit"),
	),
}

// Messages sent by the watch loop
type BuildStartedMsg struct {
	Changed []string
}

type BuildFinishedMsg struct {
	Report *build.Report
	Err    error
}

type WatchErrorMsg struct {
	Err error
}

// Model is the watch dashboard
type Model struct {
	width  int
	height int

	title   string
	srcDir  string
	spinner spinner.Model
	keys    KeyMap

	building   bool
	builds     int
	lastReport *build.Report
	lastErr    error
	files      []FileRow
	events     []string
	showErrors bool
	quitting   bool

	// rebuild asks the watch loop for a full build
	rebuild func()
}

// NewModel creates the dashboard for the files below srcDir
func NewModel(title, srcDir string, rebuild func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		title:      title,
		srcDir:     srcDir,
		spinner:    s,
		keys:       DefaultKeyMap,
		showErrors: true,
		rebuild:    rebuild,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Rebuild):
			if !m.building && m.rebuild != nil {
				m.rebuild()
			}
		case key.Matches(msg, m.keys.Errors):
			m.showErrors = !m.showErrors
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case BuildStartedMsg:
		m.building = true
		switch len(msg.Changed) {
		case 0:
			m.logEvent("full build")
		case 1:
			m.logEvent("changed " + m.rel(msg.Changed[0]))
		default:
			m.logEvent("changed " + m.rel(msg.Changed[0]) + " and others")
		}
		return m, nil

	case BuildFinishedMsg:
		m.building = false
		m.builds++
		m.lastErr = msg.Err
		if msg.Err != nil {
			m.logEvent("build failed")
			return m, nil
		}
		m.lastReport = msg.Report
		m.files = rows(msg.Report)
		if n := len(msg.Report.Failed()); n > 0 {
			m.logEvent(pluralize(n, "file") + " failed")
		} else {
			m.logEvent("built " + pluralize(len(m.files), "file") + " in " + msg.Report.Duration.Round(time.Millisecond).String())
		}
		return m, nil

	case WatchErrorMsg:
		m.logEvent("watch error: " + msg.Err.Error())
		return m, nil
	}

	return m, nil
}

func (m *Model) logEvent(s string) {
	m.events = append(m.events, time.Now().Format("15:04:05")+" "+s)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

func (m Model) rel(path string) string {
	if rel, err := filepath.Rel(m.srcDir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func rows(report *build.Report) []FileRow {
	out := make([]FileRow, 0, len(report.Files))
	for _, f := range report.Files {
		row := FileRow{Source: f.Source, Duration: f.Duration, Err: f.Err, Status: StatusOK}
		switch {
		case f.Err != nil:
			row.Status = StatusFailed
		case f.Cached:
			row.Status = StatusCached
		}
		out = append(out, row)
	}
	return out
}
