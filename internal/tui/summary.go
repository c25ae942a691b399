package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"dupdup/internal/progress"
)

// SummaryRow is one line of the end-of-run table. Numeric rows are right
// aligned so counts and sizes line up by magnitude.
type SummaryRow struct {
	Label   string
	Value   string
	Numeric bool
}

// Count is a row holding a file or group count, with thousands separators.
func Count(label string, n int) SummaryRow {
	return SummaryRow{Label: label, Value: humanize.Comma(int64(n)), Numeric: true}
}

// Size is a row holding a byte total in binary units.
func Size(label string, n int64) SummaryRow {
	return SummaryRow{Label: label, Value: progress.Bytes(n), Numeric: true}
}

// Text is a free-form row such as a file name.
func Text(label, value string) SummaryRow {
	return SummaryRow{Label: label, Value: value}
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(row.Label))
		valueWidth = max(valueWidth, lipgloss.Width(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		style := valueStyle
		if row.Numeric {
			value = padLeft(row.Value, valueWidth)
			style = numberStyle
		}
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), style.Render(value)))
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}

var (
	valueStyle  = lipgloss.NewStyle().Foreground(ColorPath)
	numberStyle = lipgloss.NewStyle().Foreground(ColorDigest).Bold(true)
)
