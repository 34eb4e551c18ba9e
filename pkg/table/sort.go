package table

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidOrder is returned when an order is neither asc nor desc.
var ErrInvalidOrder = errors.New("invalid order")

// Order is a sort direction.
type Order string

// Sort directions.
const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// DefaultOrderForNewColumn is the direction applied when a different column
// is selected for sorting.
const DefaultOrderForNewColumn = Ascending

// ParseOrder validates an order string.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case Ascending, Descending:
		return Order(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrder, s)
}

// Valid reports whether o is asc or desc.
func (o Order) Valid() bool {
	return o == Ascending || o == Descending
}

// Toggle returns the opposite direction.
func (o Order) Toggle() Order {
	if o == Descending {
		return Ascending
	}
	return Descending
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Order) UnmarshalText(text []byte) error {
	parsed, err := ParseOrder(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// SortState is the active sort column and direction of one table instance.
type SortState struct {
	OrderBy Column `json:"orderBy"`
	Order   Order  `json:"order"`
}

// NewSortState returns the initial state for a table sorted by defaultColumn
// in ascending order.
func NewSortState(defaultColumn Column) SortState {
	return SortState{OrderBy: defaultColumn, Order: Ascending}
}

// Sort returns a new slice holding rows ordered by orderBy.
//
// The sort is stable in both directions: descending negates the comparator
// rather than reversing the result, so rows with equal keys keep their
// input order. rows is never modified.
func Sort(rows []Row, orderBy Column, order Order) ([]Row, error) {
	if !orderBy.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidColumn, uint8(orderBy))
	}
	if !order.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrder, string(order))
	}

	out := make([]Row, len(rows))
	copy(out, rows)

	compare := columns[orderBy].compare
	if order == Descending {
		slices.SortStableFunc(out, func(a, b Row) int {
			return compare(&b, &a)
		})
	} else {
		slices.SortStableFunc(out, func(a, b Row) int {
			return compare(&a, &b)
		})
	}

	return out, nil
}

// Apply sorts rows according to the state.
func (s SortState) Apply(rows []Row) ([]Row, error) {
	return Sort(rows, s.OrderBy, s.Order)
}

// RequestSort returns the state after the user activates the header of
// clicked. Clicking a column that is not sortable leaves the state unchanged.
// Clicking the active column toggles the direction; clicking another column
// selects it in DefaultOrderForNewColumn.
func RequestSort(current SortState, headers Headers, clicked Column) SortState {
	if !headers.Sortable(clicked) {
		return current
	}
	if clicked == current.OrderBy {
		return SortState{OrderBy: clicked, Order: current.Order.Toggle()}
	}
	return SortState{OrderBy: clicked, Order: DefaultOrderForNewColumn}
}
