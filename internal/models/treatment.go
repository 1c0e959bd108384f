// Package models contains data structures used throughout the application
package models

import "time"

// Treatment represents a treatment entry from Nightscout (insulin, carbs, etc.)
type Treatment struct {
	ID        string  `json:"_id"`
	EventType string  `json:"eventType"`
	Date      int64   `json:"date"` // Unix timestamp in milliseconds
	CreatedAt string  `json:"created_at"`
	Insulin   float64 `json:"insulin"` // Units of insulin
	Carbs     float64 `json:"carbs"`   // Grams of carbohydrates
	Notes     string  `json:"notes"`
	EnteredBy string  `json:"enteredBy"`
}

// Time returns the time of the treatment
func (t *Treatment) Time() time.Time {
	if t.Date > 0 {
		return time.UnixMilli(t.Date)
	}
	// Fallback to created_at
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasInsulin returns true if this treatment includes insulin
func (t *Treatment) HasInsulin() bool {
	return t.Insulin > 0
}

// IsBolus returns true if this is a bolus treatment
func (t *Treatment) IsBolus() bool {
	bolusTypes := map[string]bool{
		"Bolus":            true,
		"Snack Bolus":      true,
		"Meal Bolus":       true,
		"Correction Bolus": true,
		"Combo Bolus":      true,
		"Bolus Wizard":     true,
	}
	return bolusTypes[t.EventType] || (t.HasInsulin() && t.EventType != "Temp Basal")
}

// Dose is an insulin bolus placed on a simulation time axis
type Dose struct {
	Minute float64 `json:"minute" yaml:"minute"` // Injection time in minutes from the origin
	Units  float64 `json:"units" yaml:"units"`   // Insulin units
}

// DosesFromTreatments converts bolus treatments into doses relative to origin.
// Treatments without insulin are skipped.
func DosesFromTreatments(treatments []Treatment, origin time.Time) []Dose {
	doses := make([]Dose, 0, len(treatments))
	for i := range treatments {
		t := &treatments[i]
		if !t.HasInsulin() || !t.IsBolus() {
			continue
		}
		doses = append(doses, Dose{
			Minute: t.Time().Sub(origin).Minutes(),
			Units:  t.Insulin,
		})
	}
	return doses
}
