// Package timeseries builds the time grids and process-variable series fed to the controller
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/mrcode/apcontrol/internal/models"
)

var (
	// ErrDimensionMismatch is returned when paired sequences differ in length
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotIncreasing is returned when a time axis is not strictly increasing
	ErrNotIncreasing = errors.New("time axis not strictly increasing")
)

// Series is an ordered sequence of (time, value) samples. Time is in minutes.
type Series struct {
	Time   []float64
	Values []float64
}

// Len returns the number of samples
func (s Series) Len() int {
	return len(s.Time)
}

// Validate checks that both axes have the same length and that time increases
func (s Series) Validate() error {
	if len(s.Time) != len(s.Values) {
		return fmt.Errorf("%w: %d times, %d values", ErrDimensionMismatch, len(s.Time), len(s.Values))
	}
	for i := 1; i < len(s.Time); i++ {
		if !(s.Time[i] > s.Time[i-1]) {
			return fmt.Errorf("%w: t[%d]=%v after t[%d]=%v", ErrNotIncreasing, i, s.Time[i], i-1, s.Time[i-1])
		}
	}
	return nil
}

// Bounds returns the smallest and largest value, or zeros for an empty series
func (s Series) Bounds() (lo, hi float64) {
	if len(s.Values) == 0 {
		return 0, 0
	}
	return floats.Min(s.Values), floats.Max(s.Values)
}

// Linspace returns n evenly spaced points over [start, stop], both included
func Linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, stop)
}

// Constant returns n copies of value, e.g. a fixed set point
func Constant(n int, value float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// Sine returns sin(t·rate)·amplitude + offset for every t, i.e.
// synthetic glucose measurements oscillating around the set point.
func Sine(t []float64, amplitude, rate, offset float64) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = math.Sin(ti*rate)*amplitude + offset
	}
	return out
}

// Step returns a series of n zeros that switches to value from index at onwards
func Step(n, at int, value float64) []float64 {
	out := make([]float64, n)
	for i := max(at, 0); i < n; i++ {
		out[i] = value
	}
	return out
}

// FromEntries converts recorded glucose entries into a series of minutes since
// the oldest valid reading, in the requested unit. Entries are sorted by date,
// entries without a positive SGV are skipped and readings sharing a timestamp
// are dropped after the first.
func FromEntries(entries []models.GlucoseEntry, unit string) Series {
	sorted := make([]models.GlucoseEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	s := Series{
		Time:   make([]float64, 0, len(sorted)),
		Values: make([]float64, 0, len(sorted)),
	}

	var origin time.Time
	for i := range sorted {
		e := &sorted[i]
		if e.SGV <= 0 {
			continue
		}
		if len(s.Time) == 0 {
			origin = e.Time()
		}
		minute := e.Time().Sub(origin).Minutes()
		if n := len(s.Time); n > 0 && minute <= s.Time[n-1] {
			continue
		}
		s.Time = append(s.Time, minute)
		s.Values = append(s.Values, e.Value(unit))
	}
	return s
}
