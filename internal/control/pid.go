// Package control implements the insulin feedback controllers: a proportional-only
// law and a discrete PID loop with anti-reset windup.
package control

import (
	"errors"
	"fmt"
	"math"

	"github.com/mrcode/apcontrol/internal/models"
	"github.com/mrcode/apcontrol/internal/timeseries"
)

// ErrInvalidTimeGrid is returned when the time grid cannot provide a positive step
var ErrInvalidTimeGrid = errors.New("invalid time grid")

// ErrNonFinite is returned when an input sample is NaN or infinite
var ErrNonFinite = errors.New("non-finite sample")

// Response holds the controller state recorded at every step of a run
type Response struct {
	Time       []float64
	SetPoint   []float64
	PV         []float64 // Process variable (measured BG)
	Error      []float64 // SP - PV
	Integral   []float64 // Integral of the error
	Derivative []float64 // Derivative of the PV
	P          []float64 // Proportional term
	I          []float64 // Integral term
	D          []float64 // Derivative term
	Output     []float64 // Controller output (insulin rate), clamped
	Saturated  []bool    // Output hit a limit and the integral was rolled back

	DeltaTime float64
}

// Len returns the number of recorded steps
func (r *Response) Len() int {
	return len(r.Output)
}

// Stats summarizes a run
type Stats struct {
	SaturatedSteps int
	MinOutput      float64
	MaxOutput      float64
	MinIntegral    float64
	MaxIntegral    float64
	MeanAbsError   float64
}

// Stats returns a summary of the recorded run
func (r *Response) Stats() Stats {
	if r.Len() == 0 {
		return Stats{}
	}

	st := Stats{
		MinOutput:   math.Inf(1),
		MaxOutput:   math.Inf(-1),
		MinIntegral: math.Inf(1),
		MaxIntegral: math.Inf(-1),
	}
	var absErr float64
	for i := range r.Output {
		if r.Saturated[i] {
			st.SaturatedSteps++
		}
		st.MinOutput = math.Min(st.MinOutput, r.Output[i])
		st.MaxOutput = math.Max(st.MaxOutput, r.Output[i])
		st.MinIntegral = math.Min(st.MinIntegral, r.Integral[i])
		st.MaxIntegral = math.Max(st.MaxIntegral, r.Integral[i])
		absErr += math.Abs(r.Error[i])
	}
	st.MeanAbsError = absErr / float64(r.Len())
	return st
}

func newResponse(n int) *Response {
	return &Response{
		Time:       make([]float64, n),
		SetPoint:   make([]float64, n),
		PV:         make([]float64, n),
		Error:      make([]float64, n),
		Integral:   make([]float64, n),
		Derivative: make([]float64, n),
		P:          make([]float64, n),
		I:          make([]float64, n),
		D:          make([]float64, n),
		Output:     make([]float64, n),
		Saturated:  make([]bool, n),
	}
}

// Run computes the controller output for every point of the time grid.
//
// The step Δt is taken from the first two grid points. At step i the error
// e = SP - PV is integrated (from the second step on), the output
// basal + Kc·e + Kc/τI·∫e - Kc·τD·dPV/dt is clamped to the output limits and,
// when clamped, this step's integration is undone. The last point is not
// computed; it repeats the values of the point before it.
func Run(gains models.ControllerGains, timeGrid, setPoint, processVariable []float64) (*Response, error) {
	if err := gains.Validate(); err != nil {
		return nil, err
	}
	if len(timeGrid) != len(setPoint) || len(timeGrid) != len(processVariable) {
		return nil, fmt.Errorf("%w: time %d, set point %d, process variable %d",
			timeseries.ErrDimensionMismatch, len(timeGrid), len(setPoint), len(processVariable))
	}
	if len(timeGrid) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidTimeGrid, len(timeGrid))
	}
	for _, in := range []struct {
		name   string
		values []float64
	}{
		{"time", timeGrid},
		{"set point", setPoint},
		{"process variable", processVariable},
	} {
		if i := firstNonFinite(in.values); i >= 0 {
			return nil, fmt.Errorf("%w: %s[%d] = %v", ErrNonFinite, in.name, i, in.values[i])
		}
	}
	deltaTime := timeGrid[1] - timeGrid[0]
	if !(deltaTime > 0) || math.IsInf(deltaTime, 0) {
		return nil, fmt.Errorf("%w: step %v is not positive", ErrInvalidTimeGrid, deltaTime)
	}

	ns := len(timeGrid) - 1
	r := newResponse(ns + 1)
	r.DeltaTime = deltaTime
	copy(r.Time, timeGrid)
	copy(r.SetPoint, setPoint)
	copy(r.PV, processVariable)

	kc, tauI, tauD := gains.Kc, gains.TauI, gains.TauD
	for i := 0; i < ns; i++ {
		r.Error[i] = setPoint[i] - processVariable[i]
		if i >= 1 {
			r.Derivative[i] = (processVariable[i] - processVariable[i-1]) / deltaTime
			r.Integral[i] = r.Integral[i-1] + r.Error[i]*deltaTime
		}
		r.P[i] = kc * r.Error[i]
		r.I[i] = kc / tauI * r.Integral[i]
		r.D[i] = -kc * tauD * r.Derivative[i]
		r.Output[i] = gains.BasalRate + r.P[i] + r.I[i] + r.D[i]

		if r.Output[i] > gains.OutputHigh {
			r.Output[i] = gains.OutputHigh
			r.Saturated[i] = true
		}
		if r.Output[i] < gains.OutputLow {
			r.Output[i] = gains.OutputLow
			r.Saturated[i] = true
		}
		// anti-reset windup; nothing was integrated on the first step
		if r.Saturated[i] && i >= 1 {
			r.Integral[i] -= r.Error[i] * deltaTime
		}
	}

	r.Error[ns] = r.Error[ns-1]
	r.Derivative[ns] = r.Derivative[ns-1]
	r.Integral[ns] = r.Integral[ns-1]
	r.P[ns] = r.P[ns-1]
	r.I[ns] = r.I[ns-1]
	r.D[ns] = r.D[ns-1]
	r.Output[ns] = r.Output[ns-1]
	r.Saturated[ns] = r.Saturated[ns-1]

	return r, nil
}

func firstNonFinite(values []float64) int {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

// RunSeries runs the loop with a constant set point against a recorded series
func RunSeries(gains models.ControllerGains, setPoint float64, pv timeseries.Series) (*Response, error) {
	if err := pv.Validate(); err != nil {
		return nil, err
	}
	return Run(gains, pv.Time, timeseries.Constant(pv.Len(), setPoint), pv.Values)
}

// ProportionalOnly returns the unclamped P-only law u = basal + Kc·(SP - PV)
// for every sample. Nothing stops it from going negative.
func ProportionalOnly(basalRate, kc float64, setPoint, processVariable []float64) ([]float64, error) {
	if len(setPoint) != len(processVariable) {
		return nil, fmt.Errorf("%w: set point %d, process variable %d",
			timeseries.ErrDimensionMismatch, len(setPoint), len(processVariable))
	}
	out := make([]float64, len(setPoint))
	for i := range out {
		out[i] = basalRate + kc*(setPoint[i]-processVariable[i])
	}
	return out, nil
}
