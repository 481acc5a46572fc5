package query

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/hbomb79/mediainspect/internal/fields"
)

var (
	ErrFilterSyntax  = errors.New("filter syntax invalid")
	ErrFilterColumn  = errors.New("filter column not filterable")
	ErrFilterOp      = errors.New("filter operator unknown")
	ErrFilterValue   = errors.New("filter value not parseable")
	filenameFilter   = fields.FilenameColumn.String()
	filterableFields = []fields.Column{fields.SizeColumn, fields.DurationColumn, fields.FpsColumn, fields.BitrateColumn}
)

type Operator int

const (
	GreaterThan Operator = iota
	LessThan
)

func (op Operator) Values() []string {
	return []string{">", "<"}
}

func (op Operator) String() string {
	if op < GreaterThan || op > LessThan {
		return fmt.Sprintf("UNKNOWN[%d]", op)
	}

	return op.Values()[op]
}

// Filter is a single row predicate, parsed from either the simplified
// 'filename:<text>' syntax, or the comparison syntax '<column>:<op>:<value>'.
//
// A filter which could not be parsed is not an error for the caller: it is
// marked invalid, and matches every row.
type Filter struct {
	raw       string
	err       error
	column    fields.Column
	operator  Operator
	threshold float64
	pattern   string
}

// ParseFilters parses each of the provided filter strings.
func ParseFilters(filters []string) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		out = append(out, ParseFilter(f))
	}

	return out
}

// ParseFilter parses a filter string. The returned filter should be checked
// for validity using Valid (or Err for the reason) if the caller wishes to
// report malformed filters.
func ParseFilter(raw string) Filter {
	filter := Filter{raw: raw, column: -1}

	column, rest, found := strings.Cut(raw, ":")
	if !found {
		filter.err = fmt.Errorf("%w: expected 'filename:<text>' or '<column>:<op>:<value>'", ErrFilterSyntax)
		return filter
	}

	column = strings.ToLower(strings.TrimSpace(column))
	if column == filenameFilter {
		filter.column = fields.FilenameColumn
		filter.pattern = strings.ToLower(rest)
		return filter
	}

	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		filter.err = fmt.Errorf("%w: expected '<column>:<op>:<value>'", ErrFilterSyntax)
		return filter
	}

	col, ok := fields.ParseColumn(column)
	if !ok || !slices.Contains(filterableFields, col) {
		filter.err = fmt.Errorf("%w: '%s' (expected one of %s)", ErrFilterColumn, column, filterableNames())
		return filter
	}

	op, ok := parseOperator(parts[0])
	if !ok {
		filter.err = fmt.Errorf("%w: '%s' (expected one of %s)", ErrFilterOp, parts[0], strings.Join(GreaterThan.Values(), ", "))
		return filter
	}

	threshold, ok := parseThreshold(col, parts[1])
	if !ok {
		filter.err = fmt.Errorf("%w: '%s' is not a valid %s", ErrFilterValue, parts[1], col)
		return filter
	}

	filter.column = col
	filter.operator = op
	filter.threshold = threshold
	return filter
}

// Valid returns true if the filter was parsed successfully. Invalid
// filters match every row.
func (filter Filter) Valid() bool { return filter.err == nil }

// Err returns the reason the filter is invalid, or nil.
func (filter Filter) Err() error { return filter.err }

// Matches returns whether the row given satisfies this filter.
func (filter Filter) Matches(row fields.Row) bool {
	if !filter.Valid() {
		return true
	}

	if filter.column == fields.FilenameColumn {
		return strings.Contains(strings.ToLower(row.Get(fields.FilenameColumn)), filter.pattern)
	}

	value := numericValue(row, filter.column)
	switch filter.operator {
	case GreaterThan:
		return value > filter.threshold
	case LessThan:
		return value < filter.threshold
	default:
		return true
	}
}

func (filter Filter) String() string {
	if !filter.Valid() {
		return fmt.Sprintf("Filter{INVALID %q}", filter.raw)
	}
	if filter.column == fields.FilenameColumn {
		return fmt.Sprintf("Filter{filename contains %q}", filter.pattern)
	}

	return fmt.Sprintf("Filter{%s %s %v}", filter.column, filter.operator, filter.threshold)
}

// Apply returns the rows which match every one of the filters given,
// in their original order.
func Apply(rows []fields.Row, filters []Filter) []fields.Row {
	out := make([]fields.Row, 0, len(rows))
outer:
	for _, row := range rows {
		for _, f := range filters {
			if !f.Matches(row) {
				continue outer
			}
		}

		out = append(out, row)
	}

	return out
}

func parseOperator(op string) (Operator, bool) {
	for i, v := range GreaterThan.Values() {
		if v == op {
			return Operator(i), true
		}
	}

	return -1, false
}

// parseThreshold parses the right hand side of a comparison filter in
// to the same unit that numericValue extracts from a row for the column.
func parseThreshold(column fields.Column, value string) (float64, bool) {
	v, ok := parseColumnValue(column, strings.TrimSpace(value))
	if !ok || math.IsNaN(v) {
		return 0, false
	}

	return v, true
}

func parseColumnValue(column fields.Column, value string) (float64, bool) {
	switch column {
	case fields.SizeColumn:
		if v, ok := fields.ParseSize(value); ok {
			return v, true
		}
	case fields.DurationColumn:
		if v, ok := fields.ParseHumanDuration(value); ok {
			return v, true
		}
	case fields.BitrateColumn:
		if v, ok := fields.ParseBitrate(value); ok {
			return v, true
		}
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

func filterableNames() string {
	names := []string{filenameFilter}
	for _, c := range filterableFields {
		names = append(names, c.String())
	}

	return strings.Join(names, ", ")
}
