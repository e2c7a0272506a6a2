package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)

	blockedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true)
	unblockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Bold(true)
	clockStyle     = lipgloss.NewStyle().Bold(true).Padding(1, 0)

	listStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	helpStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Render
	errorMessageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Render

	docStyle = lipgloss.NewStyle().Padding(1, 2)
)
