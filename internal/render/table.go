package render

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/hbomb79/mediainspect/internal/fields"
)

type alignment int

const (
	alignLeft alignment = iota
	alignRight
	alignCenter
)

const padding = 1

type (
	Options struct {
		// Color enables ANSI styling of the header and borders.
		Color bool
	}

	// Table writes rows as a box-drawn table, one column per field.
	Table struct {
		out    io.Writer
		header *color.Color
		border *color.Color
	}

	edge struct{ left, middle, right string }
)

var (
	topEdge    = edge{"┌", "┬", "┐"}
	titleEdge  = edge{"├", "┼", "┤"}
	bottomEdge = edge{"└", "┴", "┘"}
)

const (
	horizontal = "─"
	vertical   = "│"
)

func New(out io.Writer, opts Options) *Table {
	header := color.New(color.Bold)
	border := color.New(color.Faint)
	if opts.Color {
		header.EnableColor()
		border.EnableColor()
	} else {
		header.DisableColor()
		border.DisableColor()
	}

	return &Table{out: out, header: header, border: border}
}

// Render writes the header and each of the rows provided to the
// table's output.
func (table *Table) Render(rows []fields.Row) error {
	columns := fields.Columns()
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = utf8.RuneCountInString(c.Header())
		for _, row := range rows {
			widths[i] = max(widths[i], utf8.RuneCountInString(row.Get(c)))
		}
	}

	sb := &strings.Builder{}
	table.writeEdge(sb, widths, topEdge)

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Header()
	}
	table.writeRow(sb, widths, header, table.header)
	table.writeEdge(sb, widths, titleEdge)

	cells := make([]string, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			cells[i] = row.Get(c)
		}
		table.writeRow(sb, widths, cells, nil)
	}

	table.writeEdge(sb, widths, bottomEdge)

	_, err := io.WriteString(table.out, sb.String())
	return err
}

func (table *Table) writeEdge(sb *strings.Builder, widths []int, e edge) {
	line := strings.Builder{}
	line.WriteString(e.left)
	for i, w := range widths {
		if i > 0 {
			line.WriteString(e.middle)
		}
		line.WriteString(strings.Repeat(horizontal, w+2*padding))
	}
	line.WriteString(e.right)

	sb.WriteString(table.border.Sprint(line.String()))
	sb.WriteString("\n")
}

func (table *Table) writeRow(sb *strings.Builder, widths []int, cells []string, style *color.Color) {
	sep := table.border.Sprint(vertical)
	pad := strings.Repeat(" ", padding)

	sb.WriteString(sep)
	for i, cell := range cells {
		text := align(cell, widths[i], alignmentOf(fields.Column(i)))
		if style != nil {
			text = style.Sprint(text)
		}

		sb.WriteString(pad)
		sb.WriteString(text)
		sb.WriteString(pad)
		sb.WriteString(sep)
	}
	sb.WriteString("\n")
}

func alignmentOf(column fields.Column) alignment {
	switch {
	case column.IsNumeric():
		return alignRight
	case column == fields.DepthColumn:
		return alignCenter
	default:
		return alignLeft
	}
}

func align(s string, width int, a alignment) string {
	gap := width - utf8.RuneCountInString(s)
	if gap <= 0 {
		return s
	}

	switch a {
	case alignRight:
		return strings.Repeat(" ", gap) + s
	case alignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	default:
		return s + strings.Repeat(" ", gap)
	}
}
