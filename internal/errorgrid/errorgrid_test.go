package errorgrid

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/apcontrol/internal/timeseries"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		ref      float64
		measured float64
		want     Zone
	}{
		{"Both hypoglycemic", 50, 65, ZoneA},
		{"Within 20 percent", 200, 230, ZoneA},
		{"Exact", 120, 120, ZoneA},
		{"Moderate overestimate", 150, 200, ZoneB},
		{"High read as low", 250, 60, ZoneE},
		{"Low read as high", 60, 200, ZoneE},
		{"Overcorrection upper", 100, 220, ZoneC},
		{"Overcorrection lower", 170, 50, ZoneC},
		{"Missed hyperglycemia", 300, 150, ZoneD},
		{"Missed hypoglycemia", 50, 100, ZoneD},
		{"Upper D wedge", 65, 80, ZoneD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ref, tt.measured))
		})
	}
}

func TestZone_String(t *testing.T) {
	assert.Equal(t, "A", ZoneA.String())
	assert.Equal(t, "E", ZoneE.String())
	assert.Equal(t, "Zone(9)", Zone(9).String())
}

func TestClassifyAll(t *testing.T) {
	zones, err := ClassifyAll([]float64{120, 250}, []float64{125, 60})
	require.NoError(t, err)
	assert.Equal(t, []Zone{ZoneA, ZoneE}, zones)

	_, err = ClassifyAll([]float64{120}, []float64{125, 60})
	assert.ErrorIs(t, err, timeseries.ErrDimensionMismatch)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Zone{ZoneA, ZoneA, ZoneB, ZoneE})
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, [5]int{2, 1, 0, 0, 1}, s.Counts)
	assert.Equal(t, 50.0, s.Percent(ZoneA))
	assert.Equal(t, 75.0, s.ClinicallyAcceptable())
	assert.Zero(t, Summary{}.Percent(ZoneA))
}

func TestMARD(t *testing.T) {
	mard, err := MARD([]float64{100, 200, 0}, []float64{110, 180, 50})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, mard, 1e-12)

	mard, err = MARD(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, mard)

	_, err = MARD([]float64{1}, nil)
	assert.ErrorIs(t, err, timeseries.ErrDimensionMismatch)
}

func TestSynthetic(t *testing.T) {
	ref, measured := Synthetic(rand.New(rand.NewSource(42)), 500)
	require.Len(t, ref, 500)
	require.Len(t, measured, 500)

	for i := range ref {
		assert.GreaterOrEqual(t, ref[i], RangeMin)
		assert.LessOrEqual(t, ref[i], RangeMax)
		assert.GreaterOrEqual(t, measured[i], RangeMin)
		assert.LessOrEqual(t, measured[i], RangeMax)
		if measured[i] > RangeMin && measured[i] < RangeMax {
			assert.LessOrEqual(t, measured[i]-ref[i], 75.0+1e-9)
			assert.GreaterOrEqual(t, measured[i]-ref[i], -75.0-1e-9)
		}
	}

	again, _ := Synthetic(rand.New(rand.NewSource(42)), 500)
	assert.Equal(t, ref, again, "same seed must give the same data")
}
