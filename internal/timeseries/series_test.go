package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/apcontrol/internal/models"
)

func TestLinspace(t *testing.T) {
	grid := Linspace(0, 1200, 1201)
	require.Len(t, grid, 1201)
	assert.Equal(t, 0.0, grid[0])
	assert.Equal(t, 1200.0, grid[1200])
	assert.InDelta(t, 1.0, grid[1]-grid[0], 1e-12)

	assert.Nil(t, Linspace(0, 1, 0))
	assert.Equal(t, []float64{3}, Linspace(3, 9, 1))
	assert.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3))
}

func TestConstantAndStep(t *testing.T) {
	assert.Equal(t, []float64{6, 6, 6}, Constant(3, 6))
	assert.Equal(t, []float64{0, 0, 1, 1}, Step(4, 2, 1))
	assert.Equal(t, []float64{2, 2}, Step(2, -1, 2))
	assert.Equal(t, []float64{0, 0}, Step(2, 5, 2))
}

func TestSine(t *testing.T) {
	grid := []float64{0, math.Pi / 2 / 0.01}
	pv := Sine(grid, 2, 0.01, 6)
	assert.InDelta(t, 6.0, pv[0], 1e-12)
	assert.InDelta(t, 8.0, pv[1], 1e-9)
}

func TestSeries_Validate(t *testing.T) {
	tests := []struct {
		name    string
		series  Series
		wantErr error
	}{
		{"Valid", Series{Time: []float64{0, 1, 2}, Values: []float64{5, 6, 7}}, nil},
		{"Empty", Series{}, nil},
		{"Mismatch", Series{Time: []float64{0, 1}, Values: []float64{5}}, ErrDimensionMismatch},
		{"Repeated time", Series{Time: []float64{0, 1, 1}, Values: []float64{5, 6, 7}}, ErrNotIncreasing},
		{"NaN time", Series{Time: []float64{0, math.NaN()}, Values: []float64{5, 6}}, ErrNotIncreasing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.series.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSeries_Bounds(t *testing.T) {
	lo, hi := Series{Time: []float64{0, 1, 2}, Values: []float64{5, 9, 4}}.Bounds()
	assert.Equal(t, 4.0, lo)
	assert.Equal(t, 9.0, hi)

	lo, hi = Series{}.Bounds()
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func TestFromEntries(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	entries := []models.GlucoseEntry{
		{SGV: 180, Date: start.Add(10 * time.Minute).UnixMilli()},
		{SGV: 90, Date: start.UnixMilli()},
		{SGV: 0, Date: start.Add(15 * time.Minute).UnixMilli()},
		{SGV: 120, Date: start.Add(5 * time.Minute).UnixMilli()},
		{SGV: 125, Date: start.Add(5 * time.Minute).UnixMilli()},
	}

	series := FromEntries(entries, models.UnitMgDL)
	require.NoError(t, series.Validate())
	assert.Equal(t, []float64{0, 5, 10}, series.Time)
	assert.Equal(t, []float64{90, 120, 180}, series.Values)

	mmol := FromEntries(entries, models.UnitMmolL)
	assert.InDelta(t, 9.99, mmol.Values[2], 0.01)

	assert.Zero(t, FromEntries(nil, models.UnitMgDL).Len())
}

func TestFromEntries_SkipsLeadingCalibration(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	entries := []models.GlucoseEntry{
		{SGV: 0, Date: start.UnixMilli()},
		{SGV: 100, Date: start.Add(7 * time.Minute).UnixMilli()},
		{SGV: 110, Date: start.Add(12 * time.Minute).UnixMilli()},
	}

	series := FromEntries(entries, models.UnitMgDL)
	assert.Equal(t, []float64{0, 5}, series.Time)
	assert.Equal(t, []float64{100, 110}, series.Values)

	assert.Zero(t, FromEntries(entries[:1], models.UnitMgDL).Len())
}
