// Package errorgrid classifies glucose measurement errors with the Clarke error grid.
//
// Reference and measured values are in mg/dL. Zone A is clinically accurate,
// zone B benign, zone C leads to overcorrection, zone D to a dangerous failure
// to detect, and zone E to treating the opposite condition.
package errorgrid

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/mrcode/apcontrol/internal/timeseries"
)

// Clinical range covered by the grid (mg/dL)
const (
	RangeMin = 0.0
	RangeMax = 400.0
)

// Zone is a Clarke error grid risk zone
type Zone int

// Zones in order of increasing risk
const (
	ZoneA Zone = iota
	ZoneB
	ZoneC
	ZoneD
	ZoneE
)

// Zones lists every zone in order
var Zones = []Zone{ZoneA, ZoneB, ZoneC, ZoneD, ZoneE}

func (z Zone) String() string {
	if z < ZoneA || z > ZoneE {
		return fmt.Sprintf("Zone(%d)", int(z))
	}
	return string(rune('A' + int(z)))
}

// Classify returns the zone of a single (reference, measured) pair
func Classify(ref, measured float64) Zone {
	switch {
	case (ref <= 70 && measured <= 70) || (measured <= 1.2*ref && measured >= 0.8*ref):
		return ZoneA
	case (ref >= 180 && measured <= 70) || (ref <= 70 && measured >= 180):
		return ZoneE
	case (ref >= 70 && ref <= 290 && measured >= ref+110) ||
		(ref >= 130 && ref <= 180 && measured <= (7.0/5.0)*ref-182):
		return ZoneC
	case (ref >= 240 && measured >= 70 && measured <= 180) ||
		(ref <= 175.0/3.0 && measured <= 180 && measured >= 70) ||
		(ref >= 175.0/3.0 && ref <= 70 && measured >= (6.0/5.0)*ref):
		return ZoneD
	default:
		return ZoneB
	}
}

// ClassifyAll classifies paired sequences
func ClassifyAll(ref, measured []float64) ([]Zone, error) {
	if len(ref) != len(measured) {
		return nil, fmt.Errorf("%w: %d reference values, %d measured values",
			timeseries.ErrDimensionMismatch, len(ref), len(measured))
	}
	zones := make([]Zone, len(ref))
	for i := range ref {
		zones[i] = Classify(ref[i], measured[i])
	}
	return zones, nil
}

// Summary holds zone counts of a classified data set
type Summary struct {
	Counts [5]int
	Total  int
}

// Summarize counts the zones
func Summarize(zones []Zone) Summary {
	var s Summary
	for _, z := range zones {
		if z >= ZoneA && z <= ZoneE {
			s.Counts[z]++
			s.Total++
		}
	}
	return s
}

// Percent returns the share of points in zone z (0-100)
func (s Summary) Percent(z Zone) float64 {
	if s.Total == 0 || z < ZoneA || z > ZoneE {
		return 0
	}
	return 100 * float64(s.Counts[z]) / float64(s.Total)
}

// ClinicallyAcceptable returns the share of points in zones A and B
func (s Summary) ClinicallyAcceptable() float64 {
	return s.Percent(ZoneA) + s.Percent(ZoneB)
}

// MARD returns the mean absolute relative difference in percent.
// Pairs with a zero reference are skipped.
func MARD(ref, measured []float64) (float64, error) {
	if len(ref) != len(measured) {
		return 0, fmt.Errorf("%w: %d reference values, %d measured values",
			timeseries.ErrDimensionMismatch, len(ref), len(measured))
	}
	diffs := make([]float64, 0, len(ref))
	for i := range ref {
		if ref[i] == 0 {
			continue
		}
		diffs = append(diffs, 100*math.Abs(measured[i]-ref[i])/ref[i])
	}
	if len(diffs) == 0 {
		return 0, nil
	}
	return stat.Mean(diffs, nil), nil
}

// Clamp limits a value to the clinical range of the grid
func Clamp(v float64) float64 {
	return math.Max(RangeMin, math.Min(RangeMax, v))
}

// Synthetic generates n example pairs: a reference uniform over the clinical
// range at 0.1 mg/dL resolution and a measurement off by up to ±75 mg/dL.
// Measured values are clamped to the grid range.
func Synthetic(rng *rand.Rand, n int) (ref, measured []float64) {
	ref = make([]float64, n)
	measured = make([]float64, n)
	for i := 0; i < n; i++ {
		r := float64(rng.Intn(int(RangeMax*10)+1)) / 10
		ref[i] = r
		measured[i] = Clamp(r + float64(rng.Intn(151)) - 75)
	}
	return ref, measured
}
