// Package prediction provides insulin-on-board curves and the glucose forecasts built on them
package prediction

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mrcode/apcontrol/internal/models"
)

// ErrInvalidGrid is returned when a forecast is requested over an empty or reversed range
var ErrInvalidGrid = errors.New("invalid forecast grid")

// PredictBG returns the glucose expected t minutes after a single dose
// injected when glucose was bgRef: BG(t) = bgRef - ISF·(100 - Remaining(t))·dose/100.
func PredictBG(bgRef, isf, dose float64, curve Curve, t float64) float64 {
	return bgRef - isf*(100-curve.Remaining(t))*dose/100
}

// InsulinOnBoard returns the units of insulin still active at minute t.
// Doses injected after t do not count.
func InsulinOnBoard(curve Curve, doses []models.Dose, t float64) float64 {
	var iob float64
	for _, d := range doses {
		if d.Minute > t {
			continue
		}
		iob += d.Units * curve.Remaining(t-d.Minute) / 100
	}
	return iob
}

// PredictMultiDose returns the glucose at minute t given several doses,
// each acting independently from the same reference glucose.
func PredictMultiDose(bgRef, isf float64, curve Curve, doses []models.Dose, t float64) float64 {
	bg := bgRef
	for _, d := range doses {
		if d.Minute > t {
			continue
		}
		bg -= isf * (100 - curve.Remaining(t-d.Minute)) * d.Units / 100
	}
	return bg
}

// Predictor samples glucose forecasts for a set of doses
type Predictor struct {
	curve Curve
	isf   float64
}

// NewPredictor creates a new Predictor with the given curve and insulin sensitivity
func NewPredictor(curve Curve, isf float64) *Predictor {
	return &Predictor{curve: curve, isf: isf}
}

// Predict samples the forecast from minute 0 to horizon every interval minutes.
// The horizon itself is always included.
func (p *Predictor) Predict(
	bgRef float64,
	doses []models.Dose,
	horizon float64,
	interval float64,
	thresholdLow float64,
	thresholdHigh float64,
) (*models.PredictionResult, error) {
	if !(interval > 0) || !(horizon >= 0) || math.IsInf(horizon, 0) {
		return nil, fmt.Errorf("%w: horizon %.1f, interval %.1f", ErrInvalidGrid, horizon, interval)
	}

	result := &models.PredictionResult{
		PredictedAt:    time.Now(),
		BasedOnGlucose: bgRef,
		IOB:            InsulinOnBoard(p.curve, doses, 0),
		HighThreshold:  thresholdHigh,
		LowThreshold:   thresholdLow,
	}

	steps := int(math.Floor(horizon/interval + 1e-9))
	for i := 0; i <= steps; i++ {
		result.Points = append(result.Points, p.point(bgRef, doses, float64(i)*interval))
	}
	if last := float64(steps) * interval; horizon-last > 1e-9 {
		result.Points = append(result.Points, p.point(bgRef, doses, horizon))
	}

	result.HighInMinutes, result.LowInMinutes = thresholdTimes(result.Points, thresholdHigh, thresholdLow)
	return result, nil
}

func (p *Predictor) point(bgRef float64, doses []models.Dose, t float64) models.PredictedPoint {
	var activity, remainingUnits, givenUnits float64
	for _, d := range doses {
		if d.Minute > t {
			continue
		}
		activity += d.Units * p.curve.Activity(t-d.Minute)
		remainingUnits += d.Units * p.curve.Remaining(t-d.Minute)
		givenUnits += d.Units
	}

	remaining := 100.0
	if givenUnits > 0 {
		remaining = remainingUnits / givenUnits
	}

	value := PredictMultiDose(bgRef, p.isf, p.curve, doses, t)
	return models.PredictedPoint{
		Minute:        t,
		Activity:      activity,
		Remaining:     remaining,
		IOB:           InsulinOnBoard(p.curve, doses, t),
		Value:         value,
		InsulinEffect: value - bgRef,
	}
}

// thresholdTimes returns the first minute the forecast reaches the high and
// low thresholds. A forecast already past a threshold at minute 0 reports 0.
func thresholdTimes(points []models.PredictedPoint, high, low float64) (highIn, lowIn float64) {
	highFound, lowFound := false, false
	for _, pt := range points {
		if !highFound && pt.Value >= high {
			highIn = pt.Minute
			highFound = true
		}
		if !lowFound && pt.Value <= low {
			lowIn = pt.Minute
			lowFound = true
		}
		if highFound && lowFound {
			break
		}
	}
	return highIn, lowIn
}
