package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testHeaders() Headers {
	return Headers{
		{ID: ColumnName, Label: "Name", Sortable: true},
		{ID: ColumnValue, Label: "Value", Sortable: true},
		{ID: ColumnProgressValue, Label: "Share in total", Modifiers: []string{"progress"}},
		{ID: ColumnActions, Label: ""},
	}
}

func TestRequestSort_ToggleSameColumn(t *testing.T) {
	s := SortState{OrderBy: ColumnValue, Order: Ascending}
	got := RequestSort(s, testHeaders(), ColumnValue)
	assert.Equal(t, SortState{OrderBy: ColumnValue, Order: Descending}, got)
}

func TestRequestSort_NewColumnResetsToAscending(t *testing.T) {
	for _, o := range []Order{Ascending, Descending} {
		s := SortState{OrderBy: ColumnValue, Order: o}
		got := RequestSort(s, testHeaders(), ColumnName)
		assert.Equal(t, SortState{OrderBy: ColumnName, Order: Ascending}, got)
	}
	assert.Equal(t, Ascending, DefaultOrderForNewColumn)
}

func TestRequestSort_DoubleToggleIsIdentity(t *testing.T) {
	for _, o := range []Order{Ascending, Descending} {
		s := SortState{OrderBy: ColumnName, Order: o}
		got := RequestSort(RequestSort(s, testHeaders(), ColumnName), testHeaders(), ColumnName)
		assert.Equal(t, s, got)
	}
}

func TestRequestSort_NotSortableIsNoop(t *testing.T) {
	s := SortState{OrderBy: ColumnValue, Order: Descending}

	assert.Equal(t, s, RequestSort(s, testHeaders(), ColumnProgressValue))
	assert.Equal(t, s, RequestSort(s, testHeaders(), ColumnActions))
	// Not in the header set at all.
	assert.Equal(t, s, RequestSort(s, testHeaders(), ColumnRequestsCount))
}

func TestNewSortState(t *testing.T) {
	s := NewSortState(ColumnValue)
	assert.Equal(t, ColumnValue, s.OrderBy)
	assert.Equal(t, Ascending, s.Order)
}

func TestSortState_Apply(t *testing.T) {
	s := NewSortState(ColumnValue)
	s = RequestSort(s, testHeaders(), ColumnValue)

	out, err := s.Apply(exampleRows())
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, names(out))
}

func TestHeaders_Lookup(t *testing.T) {
	h := testHeaders()

	header, ok := h.Find(ColumnProgressValue)
	assert.True(t, ok)
	assert.Equal(t, []string{"progress"}, header.Modifiers)

	_, ok = h.Find(ColumnDiff)
	assert.False(t, ok)

	assert.Equal(t, 1, h.Index(ColumnValue))
	assert.Equal(t, -1, h.Index(ColumnDiff))
}
