// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
	headerStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 2, 0, 2).Align(lipgloss.Center)
	cellStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	flaggedRed  = lipgloss.AdaptiveColor{Light: "9", Dark: "9"}
)

// reportTable is a bordered table with zebra rows. Flagged rows are shown in bold red.
type reportTable struct {
	*lgtable.Table
	numRows int
	flagged map[int]bool
}

// newReportTable creates a table with the given column alignments. The last alignment is used for
// any remaining columns.
func newReportTable(alignments ...lipgloss.Position) *reportTable {
	t := &reportTable{flagged: make(map[int]bool)}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			s := cellStyle.Faint(row%2 == 1)
			if t.flagged[row] {
				s = s.Foreground(flaggedRed).Bold(true)
			}
			if len(alignments) > 0 {
				s = s.Align(alignments[min(col, len(alignments)-1)])
			}
			return s
		})
	return t
}

// newKeyValueTable creates a two-column table of names and values.
func newKeyValueTable() *reportTable {
	return newReportTable(lipgloss.Right, lipgloss.Left)
}

// Row appends a row.
func (t *reportTable) Row(cells ...string) {
	t.FlaggedRow(false, cells...)
}

// FlaggedRow appends a row, shown in red if flagged.
func (t *reportTable) FlaggedRow(flagged bool, cells ...string) {
	if flagged {
		t.flagged[t.numRows] = true
	}
	t.Table.Row(cells...)
	t.numRows++
}
