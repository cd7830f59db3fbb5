package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
)

// Shared terminal styles for command output.
var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headStyle  = lipgloss.NewStyle().Bold(true)
)

// laneStyles colors each lane the way a kanban board would.
var laneStyles = map[lane.Lane]lipgloss.Style{
	lane.Planned:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	lane.Claimed:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	lane.InProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	lane.ForReview:  lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	lane.Done:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	lane.Blocked:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	lane.Canceled:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true),
}

// laneStyle returns the style for a lane, defaulting to no styling.
func laneStyle(l lane.Lane) lipgloss.Style {
	if s, ok := laneStyles[l]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
