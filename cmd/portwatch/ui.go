package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	stateUp         = "UP"
	stateDown       = "DOWN"
	stateSuppressed = "SUPPRESSED"
	stateUnknown    = "UNKNOWN"
)

// printer renders tables for the terminal. Colours are dropped when out is
// not a terminal.
type printer struct {
	out    io.Writer
	styles map[string]lipgloss.Style
	header lipgloss.Style
	subtle lipgloss.Style
}

func newPrinter(out io.Writer) *printer {
	r := lipgloss.NewRenderer(out)
	return &printer{
		out: out,
		styles: map[string]lipgloss.Style{
			stateUp:         r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
			stateDown:       r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			stateSuppressed: r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
			stateUnknown:    r.NewStyle().Foreground(lipgloss.Color("8")),
		},
		header: r.NewStyle().Bold(true),
		subtle: r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (p *printer) keyValue(key, value string) {
	_, _ = fmt.Fprintf(p.out, "%s %s\n", p.subtle.Render(key+":"), value)
}

// table prints rows under headers. Cells in stateCol are coloured by value.
func (p *printer) table(headers []string, rows [][]string, stateCol int) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	parts := make([]string, len(headers))
	for i, h := range headers {
		parts[i] = padRight(h, widths[i])
	}
	_, _ = fmt.Fprintln(p.out, p.header.Render(strings.TrimRight(strings.Join(parts, "  "), " ")))

	for _, row := range rows {
		parts := make([]string, len(headers))
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if cell == "" {
				cell = "-"
			}
			padded := padRight(cell, widths[i])
			if st, ok := p.styles[cell]; ok && i == stateCol {
				padded = st.Render(cell) + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			}
			parts[i] = padded
		}
		_, _ = fmt.Fprintln(p.out, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
