package table

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidColumn is returned when a column id does not name a Row field.
var ErrInvalidColumn = errors.New("invalid column")

// Column identifies one Row field. The zero value is ColumnName.
type Column uint8

// Known columns, one per Row field.
const (
	ColumnName Column = iota
	ColumnValue
	ColumnValuePrev
	ColumnDiff
	ColumnDiffPercent
	ColumnProgressValue
	ColumnActions
	ColumnLastRequestTimestamp
	ColumnRequestsCount

	numColumns
)

// columnSpec binds a column id to its comparator.
type columnSpec struct {
	id      string
	compare func(a, b *Row) int
}

var columns = [numColumns]columnSpec{
	ColumnName: {"name", func(a, b *Row) int {
		return strings.Compare(a.Name, b.Name)
	}},
	ColumnValue: {"value", func(a, b *Row) int {
		return cmp.Compare(a.Value, b.Value)
	}},
	ColumnValuePrev: {"valuePrev", func(a, b *Row) int {
		return cmp.Compare(a.ValuePrev, b.ValuePrev)
	}},
	ColumnDiff: {"diff", func(a, b *Row) int {
		return cmp.Compare(a.Diff, b.Diff)
	}},
	ColumnDiffPercent: {"diffPercent", func(a, b *Row) int {
		return cmp.Compare(a.DiffPercent, b.DiffPercent)
	}},
	ColumnProgressValue: {"progressValue", func(a, b *Row) int {
		return cmp.Compare(a.ProgressValue, b.ProgressValue)
	}},
	ColumnActions: {"actions", func(a, b *Row) int {
		return strings.Compare(a.Actions, b.Actions)
	}},
	ColumnLastRequestTimestamp: {"lastRequestTimestamp", func(a, b *Row) int {
		return cmp.Compare(a.LastRequestTimestamp, b.LastRequestTimestamp)
	}},
	ColumnRequestsCount: {"requestsCount", func(a, b *Row) int {
		return cmp.Compare(a.RequestsCount, b.RequestsCount)
	}},
}

// Columns returns every known column in declaration order.
func Columns() []Column {
	out := make([]Column, 0, numColumns)
	for c := Column(0); c < numColumns; c++ {
		out = append(out, c)
	}
	return out
}

// ParseColumn resolves a Row field id such as "valuePrev" to its Column.
func ParseColumn(id string) (Column, error) {
	for c := Column(0); c < numColumns; c++ {
		if columns[c].id == id {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidColumn, id)
}

// Valid reports whether c names a known Row field.
func (c Column) Valid() bool {
	return c < numColumns
}

// String returns the Row field id.
func (c Column) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Column(%d)", uint8(c))
	}
	return columns[c].id
}

// Compare orders a and b by this column: negative when a sorts first.
// Compare panics on an invalid column; Sort checks validity up front.
func (c Column) Compare(a, b *Row) int {
	return columns[c].compare(a, b)
}

// MarshalText implements encoding.TextMarshaler.
func (c Column) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidColumn, uint8(c))
	}
	return []byte(columns[c].id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Column) UnmarshalText(text []byte) error {
	parsed, err := ParseColumn(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
