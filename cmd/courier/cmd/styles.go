package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/udisondev/courier/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00BFFF"))

	idStyle = lipgloss.NewStyle().Faint(true)
)

func printField(label, value string) {
	fmt.Printf("  %s %s\n", idStyle.Render(fmt.Sprintf("%-7s", label+":")), value)
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case store.StatusDone:
		return successStyle
	case store.StatusAborted:
		return warnStyle
	case store.StatusFailed:
		return errorStyle
	}
	return idStyle
}
