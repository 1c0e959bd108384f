// Package models contains data structures used throughout the application
package models

import "time"

// PredictionResult contains a sampled insulin-on-board glucose forecast
type PredictionResult struct {
	Points []PredictedPoint `json:"points"`

	// Insulin on board at the start of the forecast (units)
	IOB float64 `json:"iob"`

	// Minutes until the forecast first crosses a threshold (0 if never)
	HighInMinutes float64 `json:"highInMinutes"`
	LowInMinutes  float64 `json:"lowInMinutes"`

	HighThreshold float64 `json:"highThreshold"`
	LowThreshold  float64 `json:"lowThreshold"`

	PredictedAt    time.Time `json:"predictedAt"`
	BasedOnGlucose float64   `json:"basedOnGlucose"` // Reference BG the forecast starts from
}

// PredictedPoint represents a single sample of the forecast
type PredictedPoint struct {
	Minute    float64 `json:"minute"`    // Minutes from the origin
	Activity  float64 `json:"activity"`  // Unit-weighted utilization rate of the doses (%/min)
	Remaining float64 `json:"remaining"` // Unit-weighted remaining effect of the doses given so far (%)
	IOB       float64 `json:"iob"`       // Insulin on board (units)
	Value     float64 `json:"value"`     // Predicted glucose

	InsulinEffect float64 `json:"insulinEffect"` // Expected glucose change from insulin
}

// MinValue returns the lowest predicted value, or 0 for an empty result
func (r *PredictionResult) MinValue() float64 {
	if len(r.Points) == 0 {
		return 0
	}
	lowest := r.Points[0].Value
	for _, p := range r.Points[1:] {
		lowest = min(lowest, p.Value)
	}
	return lowest
}

// MaxValue returns the highest predicted value, or 0 for an empty result
func (r *PredictionResult) MaxValue() float64 {
	if len(r.Points) == 0 {
		return 0
	}
	highest := r.Points[0].Value
	for _, p := range r.Points[1:] {
		highest = max(highest, p.Value)
	}
	return highest
}
