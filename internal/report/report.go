// Package report renders run results for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
)

const nameWidth = 18

type styles struct {
	header    lipgloss.Style
	name      lipgloss.Style
	completed lipgloss.Style
	skipped   lipgloss.Style
	failed    lipgloss.Style
	warning   lipgloss.Style
	dim       lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header:    r.NewStyle().Bold(true),
		name:      r.NewStyle().Width(nameWidth),
		completed: r.NewStyle().Foreground(lipgloss.Color("2")),
		skipped:   r.NewStyle().Foreground(lipgloss.Color("8")),
		failed:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warning:   r.NewStyle().Foreground(lipgloss.Color("3")),
		dim:       r.NewStyle().Faint(true),
	}
}

func (s styles) status(st orchestrator.Status) string {
	label := fmt.Sprintf("%-9s", st)
	switch st {
	case orchestrator.StatusCompleted:
		return s.completed.Render(label)
	case orchestrator.StatusSkipped:
		return s.skipped.Render(label)
	default:
		return s.failed.Render(label)
	}
}

func duration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// Summary writes a per-stage table for r followed by its outcome.
func Summary(w io.Writer, r *orchestrator.RunResult) error {
	s := newStyles(w)
	var b strings.Builder

	b.WriteString(s.header.Render("Bootstrap summary"))
	b.WriteString("\n")
	warnings := 0
	for _, st := range r.Stages {
		line := s.name.Render(st.Name) + " " + s.status(st.Status) + " " + s.dim.Render(fmt.Sprintf("%8s", duration(st.Duration)))
		switch {
		case st.Error != "":
			line += "  " + st.Error
		case st.Detail != "":
			line += "  " + st.Detail
		}
		b.WriteString(line + "\n")
		for _, msg := range st.Warnings {
			warnings++
			b.WriteString(strings.Repeat(" ", nameWidth+1) + s.warning.Render("! "+msg) + "\n")
		}
	}
	b.WriteString("\n")

	if r.Succeeded() {
		b.WriteString(s.completed.Render(fmt.Sprintf("Environment ready in %s", duration(r.Duration()))))
	} else {
		b.WriteString(s.failed.Render(fmt.Sprintf("Bootstrap failed after %s", duration(r.Duration()))))
	}
	if warnings > 0 {
		b.WriteString(" " + s.warning.Render(fmt.Sprintf("(%d %s)", warnings, plural(warnings, "warning"))))
	}
	b.WriteString("\n")
	if r.LogFile != "" {
		b.WriteString(s.dim.Render("Log: "+r.LogFile) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// History writes one line per run, newest first as given.
func History(w io.Writer, runs []orchestrator.RunResult, now time.Time) error {
	s := newStyles(w)
	var b strings.Builder
	if len(runs) == 0 {
		b.WriteString(s.dim.Render("no recorded runs") + "\n")
	}
	for _, r := range runs {
		status := s.completed
		if !r.Succeeded() {
			status = s.failed
		}
		fmt.Fprintf(&b, "%s  %s  %-16s %8s  %s\n",
			r.ID[:min(8, len(r.ID))],
			status.Render(fmt.Sprintf("%-9s", r.Status)),
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			duration(r.Duration()),
			s.dim.Render(fmt.Sprintf("%d %s", len(r.Stages), plural(len(r.Stages), "stage"))),
		)
		if r.Error != "" {
			b.WriteString("          " + r.Error + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
