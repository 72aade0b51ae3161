// Package report renders step results for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	prettytable "github.com/jedib0t/go-pretty/v6/table"

	"tgpipe/internal/links"
	"tgpipe/internal/table"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	// BarColor is the colour of filled bar segments.
	BarColor = lipgloss.Color("39")
)

// Title renders a section heading.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Table writes up to limit rows of t as a rounded table. A limit of zero or
// less writes every row.
func Table(w io.Writer, t *table.Table, limit int) {
	tw := prettytable.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(prettytable.StyleRounded)

	header := make(prettytable.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)

	for i, r := range t.Rows {
		if limit > 0 && i >= limit {
			break
		}
		row := make(prettytable.Row, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = truncate(table.String(r[c]), 60)
		}
		tw.AppendRow(row)
	}

	if limit > 0 && t.Len() > limit {
		tw.AppendFooter(prettytable.Row{fmt.Sprintf("%d more rows", t.Len()-limit)})
	}
	tw.Render()
}

// KeyValues writes a two column table of labelled values.
func KeyValues(w io.Writer, title string, pairs [][2]string) {
	tw := prettytable.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(prettytable.StyleRounded)
	if title != "" {
		tw.SetTitle(title)
	}
	for _, p := range pairs {
		tw.AppendRow(prettytable.Row{p[0], p[1]})
	}
	tw.Render()
}

// BarChart creates a horizontal bar chart line.
func BarChart(label string, value, max float64, width int, color lipgloss.Color) string {
	if max == 0 {
		max = value
	}

	ratio := 0.0
	if max > 0 {
		ratio = value / max
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(float64(width) * ratio)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	barStyle := lipgloss.NewStyle().Foreground(color)
	return fmt.Sprintf("%s %s%s %.0f",
		label,
		barStyle.Render(strings.Repeat("█", filled)),
		emptyStyle.Render(strings.Repeat("░", width-filled)),
		value,
	)
}

// TopLinks writes a bar chart of the first top counts, which Tally already
// orders by frequency.
func TopLinks(w io.Writer, counts []links.Count, top, width int) {
	if top > 0 && len(counts) > top {
		counts = counts[:top]
	}
	if len(counts) == 0 {
		fmt.Fprintln(w, "   No Telegram links found")
		return
	}

	labelWidth := 0
	for _, c := range counts {
		if n := len(label(c.Link)); n > labelWidth {
			labelWidth = n
		}
	}

	max := float64(counts[0].Frequency)
	for _, c := range counts {
		l := label(c.Link)
		fmt.Fprintln(w, "   "+BarChart(l+strings.Repeat(" ", labelWidth-len(l)), float64(c.Frequency), max, width, BarColor))
	}
}

func label(link string) string {
	for _, p := range []string{"https://", "http://"} {
		link = strings.TrimPrefix(link, p)
	}
	return link
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
