package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableSpec describes one rendered table. Rows shorter than the header are
// padded with empty cells.
type tableSpec struct {
	title   string
	headers []string
	rows    [][]string
	footer  []string
	aligns  []columnAlignment
	// colors holds a per-row color applied to the whole row when colorizing.
	colors []text.Colors
}

func renderTable(spec tableSpec, colorize bool) string {
	columns := len(spec.headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	if spec.title != "" {
		tw.SetTitle(spec.title)
	}
	tw.AppendHeader(toRow(spec.headers, columns))
	for i, row := range spec.rows {
		r := toRow(row, columns)
		if colorize && i < len(spec.colors) && len(spec.colors[i]) > 0 {
			for c := range r {
				r[c] = spec.colors[i].Sprint(r[c])
			}
		}
		tw.AppendRow(r)
	}
	if len(spec.footer) > 0 {
		tw.AppendFooter(toRow(spec.footer, columns))
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(spec.aligns) && spec.aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func toRow(cells []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range columns {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
