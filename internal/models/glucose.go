// Package models contains data structures used throughout the application
package models

import "time"

// Glucose units
const (
	UnitMgDL  = "mg/dL"
	UnitMmolL = "mmol/L"
)

// mgdlPerMmol is the molar conversion factor for glucose
const mgdlPerMmol = 18.0182

// GlucoseEntry represents a single recorded glucose reading from Nightscout
type GlucoseEntry struct {
	ID        string `json:"_id"`
	SGV       int    `json:"sgv"`  // Sensor glucose value in mg/dL
	Date      int64  `json:"date"` // Unix timestamp in milliseconds
	DateStr   string `json:"dateString"`
	Direction string `json:"direction"`
	Device    string `json:"device"`
	Type      string `json:"type"`
}

// Time returns the time of the glucose entry
func (g *GlucoseEntry) Time() time.Time {
	return time.UnixMilli(g.Date)
}

// ValueMgDL returns the glucose value in mg/dL
func (g *GlucoseEntry) ValueMgDL() float64 {
	return float64(g.SGV)
}

// ValueMmolL returns the glucose value in mmol/L
func (g *GlucoseEntry) ValueMmolL() float64 {
	return ToMmol(float64(g.SGV))
}

// Value returns the glucose value in the given unit
func (g *GlucoseEntry) Value(unit string) float64 {
	if unit == UnitMmolL {
		return g.ValueMmolL()
	}
	return g.ValueMgDL()
}

// ToMmol converts a mg/dL value to mmol/L
func ToMmol(mgdl float64) float64 {
	return mgdl / mgdlPerMmol
}

// ToMgdl converts a mmol/L value to mg/dL
func ToMgdl(mmol float64) float64 {
	return mmol * mgdlPerMmol
}

// IsValidUnit reports whether unit is one of the supported glucose units
func IsValidUnit(unit string) bool {
	return unit == UnitMgDL || unit == UnitMmolL
}

// ServerStatus represents the Nightscout server status
type ServerStatus struct {
	Status     string         `json:"status"`
	Name       string         `json:"name"`
	Version    string         `json:"version"`
	ServerTime string         `json:"serverTime"`
	APIEnabled bool           `json:"apiEnabled"`
	Settings   ServerSettings `json:"settings,omitempty"`
}

// ServerSettings holds the subset of server settings used to pick display units
type ServerSettings struct {
	Units string `json:"units"`
}

// Unit returns the server's glucose unit, defaulting to mg/dL
func (s *ServerStatus) Unit() string {
	if s.Settings.Units == "mmol" || s.Settings.Units == UnitMmolL {
		return UnitMmolL
	}
	return UnitMgDL
}
