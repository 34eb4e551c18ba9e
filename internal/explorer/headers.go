package explorer

import (
	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

// Header modifiers understood by renderers.
const (
	ModifierProgress = "progress"
	ModifierNumeric  = "numeric"
	ModifierDate     = "date"
	ModifierPercent  = "percent"
)

var (
	diffHeader = table.ColumnHeader{
		ID:        table.ColumnDiff,
		Label:     "Diff",
		Info:      "Change compared to the previous snapshot",
		Sortable:  true,
		Modifiers: []string{ModifierNumeric},
	}
	diffPercentHeader = table.ColumnHeader{
		ID:        table.ColumnDiffPercent,
		Label:     "Diff %",
		Sortable:  true,
		Modifiers: []string{ModifierPercent},
	}
	valuePrevHeader = table.ColumnHeader{
		ID:        table.ColumnValuePrev,
		Label:     "Previous",
		Sortable:  true,
		Modifiers: []string{ModifierNumeric},
	}
	actionsHeader = table.ColumnHeader{
		ID:    table.ColumnActions,
		Label: "Action",
	}
)

// Headers returns the column headers shown for kind. Unknown kinds get nil.
func Headers(kind models.Kind) table.Headers {
	switch kind {
	case models.KindMetrics:
		return table.Headers{
			{ID: table.ColumnName, Label: "Metric name", Sortable: true},
			{ID: table.ColumnValue, Label: "Number of series", Sortable: true, Modifiers: []string{ModifierNumeric}},
			valuePrevHeader,
			diffHeader,
			diffPercentHeader,
			{ID: table.ColumnProgressValue, Label: "Share in total", Info: "Share of all series", Sortable: true, Modifiers: []string{ModifierProgress}},
			{ID: table.ColumnRequestsCount, Label: "Requests count", Info: "Number of queries that referenced the metric", Sortable: true, Modifiers: []string{ModifierNumeric}},
			{ID: table.ColumnLastRequestTimestamp, Label: "Last request", Info: "Time the metric was last queried", Sortable: true, Modifiers: []string{ModifierDate}},
			actionsHeader,
		}
	case models.KindLabels:
		return table.Headers{
			{ID: table.ColumnName, Label: "Label name", Sortable: true},
			{ID: table.ColumnValue, Label: "Number of series", Sortable: true, Modifiers: []string{ModifierNumeric}},
			valuePrevHeader,
			diffHeader,
			diffPercentHeader,
			{ID: table.ColumnProgressValue, Label: "Share in total", Info: "Share of all series", Sortable: true, Modifiers: []string{ModifierProgress}},
			actionsHeader,
		}
	case models.KindLabelValues:
		return table.Headers{
			{ID: table.ColumnName, Label: "Label name", Sortable: true},
			{ID: table.ColumnValue, Label: "Number of unique values", Sortable: true, Modifiers: []string{ModifierNumeric}},
			valuePrevHeader,
			diffHeader,
			diffPercentHeader,
			{ID: table.ColumnProgressValue, Label: "Share of max", Info: "Relative to the label with the most values", Sortable: true, Modifiers: []string{ModifierProgress}},
			actionsHeader,
		}
	case models.KindPairs:
		return table.Headers{
			{ID: table.ColumnName, Label: "Label=value pair", Sortable: true},
			{ID: table.ColumnValue, Label: "Number of series", Sortable: true, Modifiers: []string{ModifierNumeric}},
			valuePrevHeader,
			diffHeader,
			diffPercentHeader,
			{ID: table.ColumnProgressValue, Label: "Share in total", Info: "Share of all series", Sortable: true, Modifiers: []string{ModifierProgress}},
			actionsHeader,
		}
	}
	return nil
}
