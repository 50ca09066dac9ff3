package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true).Foreground(lipgloss.Color("15"))

	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	sideAStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	sideBStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	settleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	winnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)

	toastOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("28")).
			Padding(0, 1)
	toastErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("124")).
			Padding(0, 1)

	errorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("124")).
			Padding(0, 1)
)
