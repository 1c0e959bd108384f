package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if settings.Unit != UnitMmolL {
		t.Errorf("Default unit = %s, want mmol/L", settings.Unit)
	}
	if settings.SetPoint != 6.0 {
		t.Errorf("Default set point = %v, want 6.0", settings.SetPoint)
	}
	if settings.Controller.Kc != -1/settings.ISF {
		t.Errorf("Default Kc = %v, want -1/ISF", settings.Controller.Kc)
	}
	if settings.Profile != DefaultInsulinProfile() {
		t.Errorf("Default profile = %+v, want %+v", settings.Profile, DefaultInsulinProfile())
	}
	if err := settings.Validate(); err != nil {
		t.Errorf("Default settings should be valid: %v", err)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if settings.ISF != DefaultSettings().ISF {
		t.Errorf("ISF = %v, want default", settings.ISF)
	}
}

func TestLoadSettings_YAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := "isf: 3.5\ncontroller:\n  tau_i: 20\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if settings.ISF != 3.5 {
		t.Errorf("ISF = %v, want 3.5", settings.ISF)
	}
	if settings.Controller.TauI != 20 {
		t.Errorf("TauI = %v, want 20", settings.Controller.TauI)
	}
	if settings.Controller.OutputHigh != 10 {
		t.Errorf("OutputHigh = %v, want default 10", settings.Controller.OutputHigh)
	}
	if settings.Profile.PeakActivity != 75 {
		t.Errorf("PeakActivity = %v, want default 75", settings.Profile.PeakActivity)
	}
}

func TestSettings_SaveRoundTrip(t *testing.T) {
	for _, name := range []string{"settings.json", "settings.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			original := DefaultSettings()
			original.SetPoint = 5.5
			original.Nightscout.URL = "https://test.example.com"

			if err := original.Save(path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			loaded, err := LoadSettings(path)
			if err != nil {
				t.Fatalf("LoadSettings() error = %v", err)
			}
			if loaded.SetPoint != 5.5 {
				t.Errorf("SetPoint = %v, want 5.5", loaded.SetPoint)
			}
			if loaded.Nightscout.URL != original.Nightscout.URL {
				t.Errorf("Nightscout URL = %q, want %q", loaded.Nightscout.URL, original.Nightscout.URL)
			}
		})
	}
}

func TestLoadSettings_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Error("LoadSettings() should fail on malformed JSON")
	}
}

func TestSettings_Clone(t *testing.T) {
	original := DefaultSettings()
	original.Nightscout.URL = "https://test.example.com"

	clone := original.Clone()
	clone.Nightscout.URL = "https://modified.example.com"

	if original.Nightscout.URL == clone.Nightscout.URL {
		t.Error("Modifying clone affected original")
	}
}

func TestSettings_WithEnv(t *testing.T) {
	env := map[string]string{
		EnvNightscoutURL: "https://env.example.com",
		EnvAPIToken:      "token-123",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	original := DefaultSettings()
	settings := original.WithEnv(lookup)

	if settings.Nightscout.URL != "https://env.example.com" {
		t.Errorf("URL = %q, want env value", settings.Nightscout.URL)
	}
	if !settings.Nightscout.UseToken || settings.Nightscout.APIToken != "token-123" {
		t.Error("Token from environment should enable token auth")
	}
	if original.IsNightscoutConfigured() {
		t.Error("WithEnv must not modify the receiver")
	}
	if !settings.IsNightscoutConfigured() {
		t.Error("Settings with URL should be configured")
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr error
	}{
		{"Unknown unit", func(s *Settings) { s.Unit = "mg" }, nil},
		{"Bad profile", func(s *Settings) { s.Profile.PeakActivity = 5 }, ErrInvalidProfile},
		{"Zero tauI", func(s *Settings) { s.Controller.TauI = 0 }, ErrInvalidGains},
		{"No steps", func(s *Settings) { s.Simulation.Steps = 0 }, nil},
		{"Inverted alerts", func(s *Settings) { s.Alerts.LowThreshold = 12 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := DefaultSettings()
			tt.modify(settings)
			err := settings.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
