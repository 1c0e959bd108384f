// Package prediction provides insulin-on-board curves and the glucose forecasts built on them
package prediction

import "github.com/mrcode/apcontrol/internal/models"

// Curve describes how a single insulin dose acts over time.
// t is the number of minutes since the injection.
type Curve interface {
	// Activity returns the percentage of the dose metabolized per minute at t
	Activity(t float64) float64
	// Remaining returns the percentage of the dose's effect still outstanding at t
	Remaining(t float64) float64
	// Duration returns the minute after which the dose has no effect left
	Duration() float64
}

// LinearCurve is the piecewise-linear activity model: no activity until the
// absorption delay, a linear ramp up to the peak, a linear ramp down to zero at
// the end of insulin action. Every region is closed on its lower bound.
type LinearCurve struct {
	profile models.InsulinProfile
	maxRate float64
}

// NewLinearCurve creates a curve for the given profile
func NewLinearCurve(profile models.InsulinProfile) (*LinearCurve, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &LinearCurve{
		profile: profile,
		maxRate: profile.MaxRate(),
	}, nil
}

// MaxRate returns the utilization rate at the peak (%/min)
func (c *LinearCurve) MaxRate() float64 {
	return c.maxRate
}

// Duration returns the total activity time
func (c *LinearCurve) Duration() float64 {
	return c.profile.TotalActivity
}

// Activity implements Curve
func (c *LinearCurve) Activity(t float64) float64 {
	delay, peak, total := c.profile.InsulinDelay, c.profile.PeakActivity, c.profile.TotalActivity

	switch {
	case t < delay:
		return 0
	case t < peak:
		return (t - delay) * c.maxRate / (peak - delay)
	case t < total:
		return c.maxRate * (total - t) / (total - peak)
	default:
		return 0
	}
}

// Remaining implements Curve. It is the area left under the activity curve.
func (c *LinearCurve) Remaining(t float64) float64 {
	delay, peak, total := c.profile.InsulinDelay, c.profile.PeakActivity, c.profile.TotalActivity

	switch {
	case t < delay:
		return 100
	case t < peak:
		return 100 - (t-delay)*c.Activity(t)/2
	case t < total:
		// Full ramp-up triangle plus the trapezoid under the ramp-down so far
		rate := c.Activity(t)
		return 100 - c.maxRate*(peak-delay)/2 - (t-peak)*(rate+(c.maxRate-rate)/2)
	default:
		return 0
	}
}
