package table

// ColumnHeader describes one displayable table column.
type ColumnHeader struct {
	ID        Column   `json:"id"`
	Label     string   `json:"label"`
	Info      string   `json:"info,omitempty"`
	Sortable  bool     `json:"sortable,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// Headers is the ordered header set of a table.
type Headers []ColumnHeader

// Find returns the header for id.
func (h Headers) Find(id Column) (ColumnHeader, bool) {
	for _, header := range h {
		if header.ID == id {
			return header, true
		}
	}
	return ColumnHeader{}, false
}

// Sortable reports whether id is present and marked sortable.
func (h Headers) Sortable(id Column) bool {
	header, ok := h.Find(id)
	return ok && header.Sortable
}

// Index returns the position of id, or -1.
func (h Headers) Index(id Column) int {
	for i, header := range h {
		if header.ID == id {
			return i
		}
	}
	return -1
}
