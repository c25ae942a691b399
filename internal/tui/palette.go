package tui

import "github.com/charmbracelet/lipgloss"

// Colors shared by the progress view and the command listings.
var (
	ColorPath     = lipgloss.Color("#D8DEE9")
	ColorMuted    = lipgloss.Color("#6C7586")
	ColorDigest   = lipgloss.Color("#8FBCBB")
	ColorProgress = lipgloss.Color("#5E81AC")
	ColorDone     = lipgloss.Color("#A3BE8C")
	ColorWarn     = lipgloss.Color("#D08770")
)
