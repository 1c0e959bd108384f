package prediction

import (
	"fmt"
	"math"

	"github.com/mrcode/apcontrol/internal/models"
)

// ExponentialCurve is the oref0 exponential insulin model:
// Activity(t) = S/τ² · t · (1 - t/DIA) · exp(-t/τ), normalized over the action time.
type ExponentialCurve struct {
	peak float64 // Minutes to peak activity
	dia  float64 // Duration of insulin action in minutes

	tau float64
	a   float64
	s   float64
}

// NewExponentialCurve creates an exponential curve peaking at peak minutes
// and ending at dia minutes.
func NewExponentialCurve(peak, dia float64) (*ExponentialCurve, error) {
	if !(peak > 0) || !(dia > 2*peak) || math.IsInf(dia, 0) {
		return nil, fmt.Errorf("%w: exponential curve needs 0 < peak (%.1f) < dia/2 (%.1f)",
			models.ErrInvalidProfile, peak, dia/2)
	}

	tau := peak * (1 - peak/dia) / (1 - 2*peak/dia)
	a := 2 * tau / dia
	s := 1 / (1 - a + (1+a)*math.Exp(-dia/tau))

	return &ExponentialCurve{peak: peak, dia: dia, tau: tau, a: a, s: s}, nil
}

// Duration implements Curve
func (c *ExponentialCurve) Duration() float64 {
	return c.dia
}

// Activity implements Curve
func (c *ExponentialCurve) Activity(t float64) float64 {
	if t <= 0 || t >= c.dia {
		return 0
	}
	fraction := (c.s / (c.tau * c.tau)) * t * (1 - t/c.dia) * math.Exp(-t/c.tau)
	return math.Max(0, fraction*100)
}

// Remaining implements Curve
func (c *ExponentialCurve) Remaining(t float64) float64 {
	if t <= 0 {
		return 100
	}
	if t >= c.dia {
		return 0
	}

	tau, dia := c.tau, c.dia
	used := c.s * (1 - c.a) * ((t*t/(tau*dia*(1-c.a))-t/tau-1)*math.Exp(-t/tau) + 1)
	return math.Max(0, math.Min(100, (1-used)*100))
}
