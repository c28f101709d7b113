package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
)

// CursorRow style for the highlighted document.
var CursorRow = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// NormalRow style for other documents.
var NormalRow = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 1)

// SelectedMark style for the checkbox of a selected document.
var SelectedMark = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true)

// UnselectedMark style for the checkbox of an unselected document.
var UnselectedMark = lipgloss.NewStyle().
	Foreground(colorMuted)

// YearHeader style for year separators.
var YearHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	Padding(0, 1)

// DateText style for the dates column.
var DateText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// TagChip is the base style for tag chips; the tag color is applied on top.
var TagChip = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// FilterChip style for an active filter in the filter bar.
var FilterChip = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// FilterChipFocused style for the filter under the filter cursor.
var FilterChipFocused = FilterChip.
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary)

// AlertBar style for the job status line.
var AlertBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("0")).
	Background(colorWarning).
	Padding(0, 1)

// AlertBarDone style for the "finished jobs" line.
var AlertBarDone = AlertBar.
	Background(colorSuccess)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// InputBar style for the query and tag picker prompts.
var InputBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("240")).
	Padding(0, 1)

// PickerItem style for tag picker entries.
var PickerItem = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 2)

// PickerItemActive style for the highlighted tag picker entry.
var PickerItemActive = PickerItem.
	Foreground(colorHighlight).
	Bold(true)

// DebugPanel style for the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// DebugHeaderStyle style for debug overlay section headers.
var DebugHeaderStyle = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)
