package main

import "github.com/charmbracelet/lipgloss"

var (
	accent      = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#6b7280")
	destructive = lipgloss.Color("#e53935")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(destructive)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	tableHdStyle = cellStyle.Bold(true).Foreground(accent)
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
