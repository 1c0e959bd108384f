package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGains is returned when controller gains cannot produce a finite output
var ErrInvalidGains = errors.New("invalid controller gains")

// ControllerGains configures the PID insulin controller.
// Output is an insulin infusion rate in U/hr.
type ControllerGains struct {
	BasalRate  float64 `json:"basalRate" yaml:"basal_rate"`   // u_bias, delivered when BG is at target
	Kc         float64 `json:"kc" yaml:"kc"`                  // Proportional gain (negative: high BG raises insulin)
	TauI       float64 `json:"tauI" yaml:"tau_i"`             // Integral time constant (minutes)
	TauD       float64 `json:"tauD" yaml:"tau_d"`             // Derivative time constant (minutes), 0 disables the D term
	OutputLow  float64 `json:"outputLow" yaml:"output_low"`   // Lower limit on controller output
	OutputHigh float64 `json:"outputHigh" yaml:"output_high"` // Upper limit on controller output
}

// DefaultControllerGains returns a PI tuning with Kc = -1/ISF for ISF = 2
func DefaultControllerGains() ControllerGains {
	return ControllerGains{
		BasalRate:  1.0,
		Kc:         -0.5,
		TauI:       10.0,
		TauD:       0,
		OutputLow:  0.0,
		OutputHigh: 10.0,
	}
}

// Validate checks that the gains are finite and the output window is ordered
func (g ControllerGains) Validate() error {
	for _, v := range []float64{g.BasalRate, g.Kc, g.TauI, g.TauD} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: gains must be finite", ErrInvalidGains)
		}
	}
	if g.TauI == 0 {
		return fmt.Errorf("%w: integral time constant must not be zero", ErrInvalidGains)
	}
	if math.IsNaN(g.OutputLow) || math.IsNaN(g.OutputHigh) {
		return fmt.Errorf("%w: output limits must be numbers", ErrInvalidGains)
	}
	if g.OutputLow > g.OutputHigh {
		return fmt.Errorf("%w: output low %.2f is above output high %.2f",
			ErrInvalidGains, g.OutputLow, g.OutputHigh)
	}
	return nil
}
