package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidProfile is returned when insulin profile timings violate
// 0 <= InsulinDelay < PeakActivity < TotalActivity.
var ErrInvalidProfile = errors.New("invalid insulin profile")

// InsulinProfile describes the piecewise-linear activity curve of a rapid
// acting insulin. All values are minutes after the injection.
type InsulinProfile struct {
	InsulinDelay  float64 `json:"insulinDelay" yaml:"insulin_delay"`   // Absorption starts
	PeakActivity  float64 `json:"peakActivity" yaml:"peak_activity"`   // Utilization peaks
	TotalActivity float64 `json:"totalActivity" yaml:"total_activity"` // Effect has ended
}

// DefaultInsulinProfile returns a rapid-acting profile:
// 10 minute delay, peak at 75 minutes, 3 hours total action.
func DefaultInsulinProfile() InsulinProfile {
	return InsulinProfile{
		InsulinDelay:  10,
		PeakActivity:  75,
		TotalActivity: 180,
	}
}

// Validate checks the ordering invariant of the profile
func (p InsulinProfile) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"insulin delay", p.InsulinDelay},
		{"peak activity", p.PeakActivity},
		{"total activity", p.TotalActivity},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidProfile, f.name)
		}
	}

	switch {
	case p.InsulinDelay < 0:
		return fmt.Errorf("%w: insulin delay %.1f is negative", ErrInvalidProfile, p.InsulinDelay)
	case p.PeakActivity <= p.InsulinDelay:
		return fmt.Errorf("%w: peak activity %.1f must be after insulin delay %.1f",
			ErrInvalidProfile, p.PeakActivity, p.InsulinDelay)
	case p.TotalActivity <= p.PeakActivity:
		return fmt.Errorf("%w: total activity %.1f must be after peak activity %.1f",
			ErrInvalidProfile, p.TotalActivity, p.PeakActivity)
	}
	return nil
}

// MaxRate returns the peak utilization rate in percent per minute.
// The triangle under the activity curve always has an area of 100%.
func (p InsulinProfile) MaxRate() float64 {
	return 200 / (p.TotalActivity - p.InsulinDelay)
}
