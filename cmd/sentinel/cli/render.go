// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	allowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	denyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// Table accumulates rows and writes them with aligned columns.
//
//	table := cli.NewTable("ROLE", "ACTION", "RESOURCE")
//	table.Row("Viewer", "can_read", "Workflows")
//	table.Render(os.Stdout)
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable returns an empty table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Row appends one row. Missing cells render empty; extra cells are
// dropped.
func (t *Table) Row(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table to w. Headers are bold and underlined when w
// is a terminal. Widths are measured in terminal cells, so styled
// cells align with plain ones.
func (t *Table) Render(w io.Writer) error {
	styled := IsTerminal(w)

	widths := make([]int, len(t.headers))
	for column, header := range t.headers {
		widths[column] = lipgloss.Width(header)
	}
	for _, row := range t.rows {
		for column, cell := range row {
			widths[column] = max(widths[column], lipgloss.Width(cell))
		}
	}

	headers := make([]string, len(t.headers))
	for column, header := range t.headers {
		if styled {
			header = headerStyle.Render(header)
		}
		headers[column] = header
	}
	if _, err := io.WriteString(w, formatRow(headers, widths)); err != nil {
		return err
	}
	for _, row := range t.rows {
		if _, err := io.WriteString(w, formatRow(row, widths)); err != nil {
			return err
		}
	}
	return nil
}

func formatRow(cells []string, widths []int) string {
	var line strings.Builder
	for column, cell := range cells {
		line.WriteString(cell)
		if column == len(cells)-1 {
			break
		}
		line.WriteString(strings.Repeat(" ", widths[column]-lipgloss.Width(cell)+3))
	}
	return strings.TrimRight(line.String(), " ") + "\n"
}

// Verdict formats an allow/deny outcome, colored when w is a terminal.
func Verdict(w io.Writer, allowed bool) string {
	text, style := "DENY", denyStyle
	if allowed {
		text, style = "ALLOW", allowStyle
	}
	if !IsTerminal(w) {
		return text
	}
	return style.Render(text)
}

