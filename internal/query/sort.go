package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/hbomb79/mediainspect/internal/fields"
)

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) Values() []string {
	return []string{"asc", "desc"}
}

func (d Direction) String() string {
	if d < Ascending || d > Descending {
		return fmt.Sprintf("UNKNOWN[%d]", d)
	}

	return d.Values()[d]
}

// ParseDirection accepts "asc" or "desc" (case-insensitive).
func ParseDirection(s string) (Direction, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, v := range Ascending.Values() {
		if v == s {
			return Direction(i), true
		}
	}

	return -1, false
}

// Sort orders the rows in place by the column given. Numeric columns are compared
// by the value recovered from their display string (treating unparseable values
// as zero); all other columns compare lexically.
//
// The sort is stable in both directions: rows which compare equal keep their
// relative order, and a descending sort is the reverse of an ascending sort
// whenever the keys are distinct.
func Sort(rows []fields.Row, column fields.Column, direction Direction) {
	compare := comparator(column)
	if direction == Descending {
		slices.SortStableFunc(rows, func(a, b fields.Row) int { return compare(b, a) })
		return
	}

	slices.SortStableFunc(rows, compare)
}

func comparator(column fields.Column) func(a, b fields.Row) int {
	if column.IsNumeric() {
		return func(a, b fields.Row) int {
			return cmp.Compare(numericValue(a, column), numericValue(b, column))
		}
	}

	return func(a, b fields.Row) int {
		return strings.Compare(a.Get(column), b.Get(column))
	}
}

// numericValue recovers the number behind a numeric column's display
// string: bytes for size, seconds for duration, frames/sec for fps and
// Mbps for bitrate. Empty or malformed values are zero.
func numericValue(row fields.Row, column fields.Column) float64 {
	display := row.Get(column)

	var (
		v  float64
		ok bool
	)
	switch column {
	case fields.SizeColumn:
		v, ok = fields.ParseSize(display)
	case fields.DurationColumn:
		v, ok = fields.ParseDuration(display)
	case fields.FpsColumn:
		v, ok = fields.ParseFrameRate(display)
	case fields.BitrateColumn:
		v, ok = fields.ParseBitrate(display)
	}

	if !ok {
		return 0
	}

	return v
}
