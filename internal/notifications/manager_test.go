package notifications

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mrcode/apcontrol/internal/models"
)

// Test constants
const (
	testMmolUnit = "mmol/L"
	testMgdlUnit = "mg/dL"
)

type recorder struct {
	titles   []string
	messages []string
	err      error
}

func (r *recorder) send(title, message string) error {
	if r.err != nil {
		return r.err
	}
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func forecast(values ...float64) *models.PredictionResult {
	result := &models.PredictionResult{LowThreshold: 3.9, HighThreshold: 10}
	for i, v := range values {
		result.Points = append(result.Points, models.PredictedPoint{Minute: float64(i * 5), Value: v})
	}
	return result
}

func newTestManager(now *time.Time) (*Manager, *recorder) {
	rec := &recorder{}
	manager := NewManager(models.DefaultSettings()).WithSender(rec.send)
	manager.now = func() time.Time { return *now }
	return manager, rec
}

func TestManager_shouldAlert(t *testing.T) {
	manager := NewManager(models.DefaultSettings())

	tests := []struct {
		name     string
		result   *models.PredictionResult
		expected string
	}{
		{"Already low", forecast(3.5, 3.0), alertLow},
		{"Predicted low", forecast(6, 5, 3.8), alertPredictedLow},
		{"Already high", forecast(12, 11), alertHigh},
		{"Predicted high", forecast(8, 9, 10.5), alertPredictedHigh},
		{"Low wins over high", forecast(9, 12, 3), alertPredictedLow},
		{"In range", forecast(6, 5.5, 5), ""},
		{"Empty", forecast(), ""},
		{"Nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := manager.shouldAlert(tt.result)
			if result != tt.expected {
				t.Errorf("shouldAlert() = %s, want %s", result, tt.expected)
			}
		})
	}
}

func TestManager_shouldAlert_Disabled(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Alerts.LowThreshold = 0
	settings.Alerts.HighThreshold = 0
	manager := NewManager(settings)

	if result := manager.shouldAlert(forecast(2, 20)); result != "" {
		t.Errorf("shouldAlert() = %s, want empty (disabled)", result)
	}
}

func TestManager_CheckPrediction_Repeat(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	manager, rec := newTestManager(&now)

	sent, err := manager.CheckPrediction(forecast(6, 3.5))
	if err != nil || sent != alertPredictedLow {
		t.Fatalf("CheckPrediction() = %q, %v", sent, err)
	}

	// Suppressed within the repeat window
	now = now.Add(10 * time.Minute)
	if sent, _ := manager.CheckPrediction(forecast(6, 3.5)); sent != "" {
		t.Errorf("alert repeated after 10 min: %s", sent)
	}

	// Default repeat is 15 minutes
	now = now.Add(6 * time.Minute)
	if sent, _ := manager.CheckPrediction(forecast(6, 3.5)); sent != alertPredictedLow {
		t.Errorf("alert not repeated after 16 min: %q", sent)
	}

	if len(rec.titles) != 2 {
		t.Errorf("sent %d notifications, want 2", len(rec.titles))
	}
}

func TestManager_CheckPrediction_NoRepeat(t *testing.T) {
	now := time.Now()
	manager, rec := newTestManager(&now)
	manager.settings.Alerts.RepeatAlertMinutes = 0

	_, _ = manager.CheckPrediction(forecast(12))
	now = now.Add(24 * time.Hour)
	_, _ = manager.CheckPrediction(forecast(12))

	if len(rec.titles) != 1 {
		t.Errorf("sent %d notifications, want 1", len(rec.titles))
	}
}

func TestManager_CheckPrediction_SendError(t *testing.T) {
	now := time.Now()
	manager, rec := newTestManager(&now)
	rec.err = errors.New("no notification daemon")

	if _, err := manager.CheckPrediction(forecast(2)); err == nil {
		t.Fatal("Expected error from sender")
	}
	if len(manager.lastAlertTime) != 0 {
		t.Error("failed alert should not be recorded")
	}
}

func TestManager_formatNotification(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Unit = testMgdlUnit
	manager := NewManager(settings)

	tests := []struct {
		alertType     string
		expectedTitle string
	}{
		{alertLow, "⬇️ Low Glucose"},
		{alertPredictedLow, "⬇️ Low Predicted"},
		{alertHigh, "⬆️ High Glucose"},
		{alertPredictedHigh, "⬆️ High Predicted"},
	}

	result := forecast(100)

	for _, tt := range tests {
		t.Run(tt.alertType, func(t *testing.T) {
			title, message := manager.formatNotification(result, tt.alertType)
			if title != tt.expectedTitle {
				t.Errorf("title = %s, want %s", title, tt.expectedTitle)
			}
			if !strings.Contains(message, "mg/dL") {
				t.Errorf("Message should contain mg/dL, got: %s", message)
			}
		})
	}
}

func TestManager_formatNotification_MmolL(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Unit = testMmolUnit
	manager := NewManager(settings)

	result := forecast(6, 3.5)
	result.LowInMinutes = 5

	_, message := manager.formatNotification(result, alertPredictedLow)
	if !strings.Contains(message, "3.9 mmol/L") || !strings.Contains(message, "5 min") {
		t.Errorf("unexpected message: %s", message)
	}
}

func TestManager_SendTestNotification(t *testing.T) {
	now := time.Now()
	manager, rec := newTestManager(&now)

	if err := manager.SendTestNotification(); err != nil {
		t.Fatalf("SendTestNotification() error = %v", err)
	}
	if len(rec.titles) != 1 || rec.titles[0] != "apcontrol" {
		t.Errorf("titles = %v", rec.titles)
	}
}
