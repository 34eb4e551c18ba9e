package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRow(t *testing.T) {
	tests := []struct {
		name        string
		value, prev int64
		wantDiff    int64
		wantPercent float64
	}{
		{"growth", 150, 100, 50, 50},
		{"shrink", 50, 200, -150, -75},
		{"unchanged", 7, 7, 0, 0},
		{"repeating fraction", 2, 3, -1, -33.33},
		{"rounds to two decimals", 1, 3, -2, -66.67},
		{"new entry", 12, 0, 12, 100},
		{"both zero", 0, 0, 0, 0},
		{"vanished", 0, 40, -40, -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := NewRow("x", tt.value, tt.prev)
			assert.Equal(t, tt.wantDiff, row.Diff)
			assert.Equal(t, row.Value-row.ValuePrev, row.Diff)
			assert.InDelta(t, tt.wantPercent, row.DiffPercent, 1e-9)
		})
	}
}

func TestDiffPercent_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, DiffPercent(1000, 3), DiffPercent(1000, 3))
	}
	assert.InDelta(t, 33233.33, DiffPercent(1000, 3), 1e-9)
}

func TestProgress(t *testing.T) {
	assert.InDelta(t, 25.0, Progress(25, 100), 1e-9)
	assert.InDelta(t, 33.33, Progress(1, 3), 1e-9)
	assert.Zero(t, Progress(10, 0))
	assert.Zero(t, Progress(10, -5))
}
