// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the Nightscout connection
const (
	EnvNightscoutURL = "APCONTROL_NIGHTSCOUT_URL"
	EnvAPISecret     = "APCONTROL_API_SECRET"
	EnvAPIToken      = "APCONTROL_API_TOKEN"
)

// Settings contains every parameter of a simulation run.
// A Settings value is treated as read-only once loaded.
type Settings struct {
	Unit string `json:"unit" yaml:"unit"` // "mg/dL" or "mmol/L"

	SetPoint    float64 `json:"setPoint" yaml:"set_point"`       // Target BG (SP)
	ISF         float64 `json:"isf" yaml:"isf"`                  // BG drop per unit of insulin
	BGReference float64 `json:"bgReference" yaml:"bg_reference"` // BG at the time of the dose
	InsulinDose float64 `json:"insulinDose" yaml:"insulin_dose"` // Units injected at t=0

	Profile    InsulinProfile     `json:"profile" yaml:"profile"`
	Controller ControllerGains    `json:"controller" yaml:"controller"`
	Simulation SimulationSettings `json:"simulation" yaml:"simulation"`
	Alerts     AlertSettings      `json:"alerts" yaml:"alerts"`
	Nightscout NightscoutSettings `json:"nightscout" yaml:"nightscout"`
}

// SimulationSettings describes the time grid and the synthetic process variable
type SimulationSettings struct {
	Duration    float64 `json:"duration" yaml:"duration"`         // Minutes
	Steps       int     `json:"steps" yaml:"steps"`               // Number of intervals, the grid has Steps+1 points
	PVAmplitude float64 `json:"pvAmplitude" yaml:"pv_amplitude"` // Amplitude of the synthetic sine PV
	PVRate      float64 `json:"pvRate" yaml:"pv_rate"`           // Angular rate of the synthetic PV (rad/min)
	Horizon     float64 `json:"horizon" yaml:"horizon"`           // IOB forecast length in minutes
	Interval    float64 `json:"interval" yaml:"interval"`         // Measurement interval T in minutes
}

// AlertSettings contains thresholds for forecast notifications
type AlertSettings struct {
	LowThreshold       float64 `json:"lowThreshold" yaml:"low_threshold"`
	HighThreshold      float64 `json:"highThreshold" yaml:"high_threshold"`
	RepeatAlertMinutes int     `json:"repeatAlertMinutes" yaml:"repeat_alert_minutes"` // 0 = no repeat
}

// NightscoutSettings holds the connection used to replay recorded data
type NightscoutSettings struct {
	URL       string `json:"url" yaml:"url"`
	APISecret string `json:"apiSecret" yaml:"api_secret"` // Plain API secret (will be hashed)
	APIToken  string `json:"apiToken" yaml:"api_token"`   // Token-based auth
	UseToken  bool   `json:"useToken" yaml:"use_token"`   // Use token instead of secret
}

// DefaultSettings returns settings with default values in mmol/L
func DefaultSettings() *Settings {
	return &Settings{
		Unit:        UnitMmolL,
		SetPoint:    6.0,
		ISF:         2.0,
		BGReference: 10.0,
		InsulinDose: 1.0,

		Profile:    DefaultInsulinProfile(),
		Controller: DefaultControllerGains(),

		Simulation: SimulationSettings{
			Duration:    1200,
			Steps:       1200,
			PVAmplitude: 2.0,
			PVRate:      0.01,
			Horizon:     210,
			Interval:    5,
		},

		Alerts: AlertSettings{
			LowThreshold:       3.9,
			HighThreshold:      10.0,
			RepeatAlertMinutes: 15,
		},
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, "apcontrol"), nil
}

// GetConfigPath returns the full path to the default config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadSettings reads settings from path. Fields missing from the file keep
// their defaults; a missing file yields DefaultSettings.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is chosen by the user running the tool
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, s)
	} else {
		err = json.Unmarshal(data, s)
	}
	if err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}

	return s, nil
}

// Save writes the settings to path, as YAML or JSON depending on the extension
func (s *Settings) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	clone := *s
	return &clone
}

// WithEnv returns a copy of the settings with Nightscout credentials taken
// from the environment lookup where present
func (s *Settings) WithEnv(lookup func(string) (string, bool)) *Settings {
	clone := s.Clone()
	if v, ok := lookup(EnvNightscoutURL); ok && v != "" {
		clone.Nightscout.URL = v
	}
	if v, ok := lookup(EnvAPISecret); ok && v != "" {
		clone.Nightscout.APISecret = v
	}
	if v, ok := lookup(EnvAPIToken); ok && v != "" {
		clone.Nightscout.APIToken = v
		clone.Nightscout.UseToken = true
	}
	return clone
}

// Validate checks all sections of the settings
func (s *Settings) Validate() error {
	if !IsValidUnit(s.Unit) {
		return fmt.Errorf("unknown unit %q", s.Unit)
	}
	if err := s.Profile.Validate(); err != nil {
		return err
	}
	if err := s.Controller.Validate(); err != nil {
		return err
	}
	if s.Simulation.Steps < 1 {
		return fmt.Errorf("simulation steps must be at least 1, got %d", s.Simulation.Steps)
	}
	if s.Simulation.Duration <= 0 {
		return fmt.Errorf("simulation duration must be positive, got %.1f", s.Simulation.Duration)
	}
	if s.Simulation.Interval <= 0 {
		return fmt.Errorf("measurement interval must be positive, got %.1f", s.Simulation.Interval)
	}
	if s.Alerts.LowThreshold >= s.Alerts.HighThreshold {
		return fmt.Errorf("low alert threshold %.1f must be below high threshold %.1f",
			s.Alerts.LowThreshold, s.Alerts.HighThreshold)
	}
	return nil
}

// IsNightscoutConfigured returns true if a Nightscout URL is set
func (s *Settings) IsNightscoutConfigured() bool {
	return s.Nightscout.URL != ""
}
