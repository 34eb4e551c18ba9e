// Package table defines the row, header and ordering contract for the
// sortable cardinality statistics tables.
package table

import (
	"github.com/shopspring/decimal"
)

// Row is a single cardinality statistic entry.
// Rows are immutable snapshots once handed to a table; Sort never mutates them.
type Row struct {
	Name                 string  `json:"name"`
	Value                int64   `json:"value"`
	ValuePrev            int64   `json:"valuePrev"`
	Diff                 int64   `json:"diff"`
	DiffPercent          float64 `json:"diffPercent"`
	ProgressValue        float64 `json:"progressValue"`
	Actions              string  `json:"actions"`
	LastRequestTimestamp int64   `json:"lastRequestTimestamp"`
	RequestsCount        int64   `json:"requestsCount"`
}

// NewRow builds a Row with Diff and DiffPercent derived from value and prev.
func NewRow(name string, value, prev int64) Row {
	return Row{
		Name:        name,
		Value:       value,
		ValuePrev:   prev,
		Diff:        value - prev,
		DiffPercent: DiffPercent(value, prev),
	}
}

var hundred = decimal.NewFromInt(100)

// DiffPercent returns (value-prev)/prev*100 rounded to two decimals.
//
// A zero prev has no ratio: the result is 0 when value is also 0 and 100
// when the entry appeared from nothing.
func DiffPercent(value, prev int64) float64 {
	if prev == 0 {
		if value == 0 {
			return 0
		}
		return 100
	}

	diff := decimal.NewFromInt(value - prev)
	pct := diff.Div(decimal.NewFromInt(prev)).Mul(hundred).Round(2)
	return pct.InexactFloat64()
}

// Progress returns value as a percentage of total, rounded to two decimals.
// A non-positive total yields 0.
func Progress(value, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(value).Div(decimal.NewFromInt(total)).Mul(hundred).Round(2)
	return pct.InexactFloat64()
}
