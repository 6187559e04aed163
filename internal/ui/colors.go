package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/mixtape/internal/tasks"
)

var (
	purple = lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#7D56F4"}
	green  = lipgloss.AdaptiveColor{Light: "#02804F", Dark: "#04B575"}
	red    = lipgloss.AdaptiveColor{Light: "#C21807", Dark: "#FF5F5F"}
	orange = lipgloss.AdaptiveColor{Light: "#B36200", Dark: "#FFA500"}
	grey   = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#626262"}
)

// theme is the set of styles every view renders with.
type theme struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

var styles = theme{
	title: lipgloss.NewStyle().Foreground(purple).Bold(true).MarginBottom(1),
	ok:    lipgloss.NewStyle().Foreground(green).Bold(true),
	err:   lipgloss.NewStyle().Foreground(red).Bold(true),
	warn:  lipgloss.NewStyle().Foreground(orange),
	help:  lipgloss.NewStyle().Foreground(grey).Italic(true),
}

// stageMark renders the checklist marker of s while the running job is at current.
// spin is shown for the stage in progress.
func (t theme) stageMark(s, current tasks.Stage, failed bool, spin string) string {
	switch {
	case current == tasks.Done || s < current:
		return t.ok.Render("✓")
	case s == current && failed:
		return t.err.Render("✗")
	case s == current:
		return spin
	default:
		return t.help.Render("·")
	}
}

// jobMark renders the result marker of a finished job.
func (t theme) jobMark(job *tasks.Job) string {
	switch {
	case job.Stage == tasks.Done:
		return t.ok.Render("✓")
	case job.Skipped:
		return t.warn.Render("-")
	default:
		return t.err.Render("✗")
	}
}
