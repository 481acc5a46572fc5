package fields

import (
	"fmt"
	"strings"
)

// Column identifies one of the ten display fields of a Row.
type Column int

const (
	FilenameColumn Column = iota
	SizeColumn
	DurationColumn
	FpsColumn
	BitrateColumn
	ResolutionColumn
	CodecColumn
	ProfileColumn
	DepthColumn
	AudioColumn

	columnCount
)

var columnAliases = map[string]Column{
	"format":    CodecColumn,
	"bitdepth":  DepthColumn,
	"bit-depth": DepthColumn,
}

func (c Column) Values() []string {
	return []string{"filename", "size", "duration", "fps", "bitrate", "resolution", "codec", "profile", "depth", "audio"}
}

func (c Column) String() string {
	if c < 0 || c >= columnCount {
		return fmt.Sprintf("unknown[%d]", int(c))
	}

	return c.Values()[c]
}

// Header returns the human friendly title for the column.
func (c Column) Header() string {
	return []string{"Filename", "Size", "Duration", "FPS", "Bitrate", "Resolution", "Format", "Profile", "Depth", "Audio"}[c]
}

// IsNumeric returns true for the columns whose display strings
// encode a number which can be recovered for comparisons.
func (c Column) IsNumeric() bool {
	switch c {
	case SizeColumn, DurationColumn, FpsColumn, BitrateColumn:
		return true
	default:
		return false
	}
}

// Columns returns all the columns, in display order.
func Columns() []Column {
	out := make([]Column, 0, columnCount)
	for c := FilenameColumn; c < columnCount; c++ {
		out = append(out, c)
	}

	return out
}

// ColumnNames returns the canonical name of every column, in display order.
func ColumnNames() []string {
	return FilenameColumn.Values()
}

// ParseColumn finds the column with the given name (case-insensitive). Aliases
// such as 'format' (for codec) are also accepted.
func ParseColumn(name string) (Column, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range Columns() {
		if c.String() == name {
			return c, true
		}
	}

	if c, ok := columnAliases[name]; ok {
		return c, true
	}

	return -1, false
}
