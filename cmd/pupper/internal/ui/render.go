package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pupperjs/core-sub000/pkg/compiler"
	"github.com/pupperjs/core-sub000/pkg/pug"
)

// Style definitions
var (
	primaryColor = lipgloss.Color("#a855f7")
	successColor = lipgloss.Color("#10b981")
	warningColor = lipgloss.Color("#f59e0b")
	errorColor   = lipgloss.Color("#ef4444")
	mutedColor   = lipgloss.Color("#94a3b8")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(errorColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	switch {
	case m.building:
		b.WriteString(m.spinner.View() + " building...")
	case m.lastErr != nil:
		b.WriteString(errorStyle.Render("✗ " + m.lastErr.Error()))
	case m.lastReport == nil:
		b.WriteString(mutedStyle.Render("waiting for the first build"))
	case len(m.lastReport.Failed()) > 0:
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s of %s failed", pluralize(len(m.lastReport.Failed()), "file"), pluralize(len(m.files), "file"))))
	default:
		b.WriteString(successStyle.Render("✓ " + pluralize(len(m.files), "file") + " compiled"))
		if n := m.lastReport.Cached(); n > 0 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf(" (%d cached)", n)))
		}
	}
	b.WriteString("\n\n")

	for _, f := range m.files {
		b.WriteString(m.renderRow(f))
		b.WriteString("\n")
	}

	if m.showErrors {
		for _, f := range m.files {
			if f.Err != nil {
				b.WriteString("\n")
				b.WriteString(boxStyle.Render(FormatError(f.Err)))
				b.WriteString("\n")
			}
		}
	}

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, e := range m.events {
			b.WriteString(mutedStyle.Render(e))
			b.WriteString("\n")
		}
	}

	b.WriteString(footerStyle.Render(fmt.Sprintf("%s • %s • %s",
		m.keys.Rebuild.Help().Key+" "+m.keys.Rebuild.Help().Desc,
		m.keys.Errors.Help().Key+" "+m.keys.Errors.Help().Desc,
		m.keys.Quit.Help().Key+" "+m.keys.Quit.Help().Desc)))
	return b.String()
}

func (m Model) renderRow(f FileRow) string {
	var icon string
	switch f.Status {
	case StatusOK:
		icon = successStyle.Render("✓")
	case StatusCached:
		icon = mutedStyle.Render("●")
	case StatusFailed:
		icon = errorStyle.Render("✗")
	default:
		icon = warningStyle.Render("…")
	}
	return fmt.Sprintf(" %s %s %s", icon, m.rel(f.Source), mutedStyle.Render(f.Duration.String()))
}

// FormatError renders a compile error for the terminal. Diagnostics keep
// their code and position; other errors print as is.
func FormatError(err error) string {
	return formatError(err, true)
}

// PlainError is FormatError without terminal styling
func PlainError(err error) string {
	return formatError(err, false)
}

func formatError(err error, styled bool) string {
	render := func(s lipgloss.Style, text string) string {
		if styled {
			return s.Render(text)
		}
		return text
	}

	var perr *pug.Error
	if errors.As(err, &perr) {
		name := perr.Filename
		if name == "" {
			name = "template"
		}
		head := render(errorStyle, perr.Code) + " " + render(mutedStyle, fmt.Sprintf("%s:%d:%d", name, perr.Line, perr.Column))
		return head + "\n" + perr.Msg
	}
	var cerr *compiler.ConfigError
	if errors.As(err, &cerr) {
		return render(errorStyle, "CONFIG") + " " + cerr.Error()
	}
	return err.Error()
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
