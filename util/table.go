package util

import (
	"io"

	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/olekukonko/tablewriter"
)

// Table is a borderless, tab padded listing for CLI output. Individual cells
// can be colored, e.g. to highlight a job status.
type Table struct {
	header []string
	rows   [][]string
	colors map[int]map[int]tablewriter.Colors
}

func NewTable(header ...string) *Table {
	return &Table{
		header: header,
		colors: make(map[int]map[int]tablewriter.Colors),
	}
}

// Append adds a row and returns its index.
func (t *Table) Append(row ...string) int {
	t.rows = append(t.rows, row)
	return len(t.rows) - 1
}

func (t *Table) Color(row, column int, colors tablewriter.Colors) {
	if t.colors[row] == nil {
		t.colors[row] = make(map[int]tablewriter.Colors)
	}
	t.colors[row][column] = colors
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)

	for index, row := range t.rows {
		rowColors, ok := t.colors[index]
		if !ok {
			table.Append(row)
			continue
		}
		cells := make([]tablewriter.Colors, len(row))
		for column := range row {
			cells[column] = rowColors[column]
		}
		table.Rich(row, cells)
	}

	table.SetHeader(t.header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.Render()
}

// StatusColor picks the cell color for a job status or provider state.
func StatusColor(status string) tablewriter.Colors {
	switch status {
	case constants.JobCompleted, "active":
		return tablewriter.Colors{tablewriter.Bold, tablewriter.FgGreenColor}
	case constants.JobFailed, "inactive":
		return tablewriter.Colors{tablewriter.Bold, tablewriter.FgRedColor}
	case constants.JobCancelled:
		return tablewriter.Colors{tablewriter.Normal, tablewriter.FgYellowColor}
	default:
		return tablewriter.Colors{}
	}
}
