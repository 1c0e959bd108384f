// Package notifications raises desktop alerts when a forecast crosses the glucose thresholds
package notifications

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/apcontrol/internal/models"
)

// Alert type constants
const (
	alertLow           = "low"
	alertPredictedLow  = "predicted_low"
	alertHigh          = "high"
	alertPredictedHigh = "predicted_high"
)

// Sender delivers a notification to the user
type Sender func(title, message string) error

// Manager handles forecast alerts and notifications
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	send          Sender
	now           func() time.Time
	mu            sync.Mutex
}

// NewManager creates a new notification manager that notifies through the desktop
func NewManager(settings *models.Settings) *Manager {
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		send:          desktopNotify,
		now:           time.Now,
	}
}

// WithSender replaces the notification sink, e.g. to log instead of showing a popup
func (m *Manager) WithSender(send Sender) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.send = send
	return m
}

// CheckPrediction checks a forecast against the alert thresholds and sends a
// notification if needed. It returns the alert type that was sent, or "".
func (m *Manager) CheckPrediction(result *models.PredictionResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alertType := m.shouldAlert(result)
	if alertType == "" {
		return "", nil
	}

	// Check if we should repeat the alert
	if lastTime, ok := m.lastAlertTime[alertType]; ok {
		if m.settings.Alerts.RepeatAlertMinutes > 0 {
			repeatDuration := time.Duration(m.settings.Alerts.RepeatAlertMinutes) * time.Minute
			if m.now().Sub(lastTime) < repeatDuration {
				return "", nil
			}
		} else {
			// No repeat, only alert once per status change
			return "", nil
		}
	}

	title, message := m.formatNotification(result, alertType)
	if err := m.send(title, message); err != nil {
		return "", fmt.Errorf("sending %s alert: %w", alertType, err)
	}

	m.lastAlertTime[alertType] = m.now()
	return alertType, nil
}

// shouldAlert determines if an alert should be sent. Lows win over highs.
func (m *Manager) shouldAlert(result *models.PredictionResult) string {
	if result == nil || len(result.Points) == 0 {
		return ""
	}
	low, high := m.settings.Alerts.LowThreshold, m.settings.Alerts.HighThreshold
	current := result.Points[0].Value

	switch {
	case low > 0 && current <= low:
		return alertLow
	case low > 0 && result.MinValue() <= low:
		return alertPredictedLow
	case high > 0 && current >= high:
		return alertHigh
	case high > 0 && result.MaxValue() >= high:
		return alertPredictedHigh
	}
	return ""
}

// formatNotification creates the notification title and message
func (m *Manager) formatNotification(result *models.PredictionResult, alertType string) (string, string) {
	unit := m.settings.Unit
	current := result.Points[0].Value

	switch alertType {
	case alertLow:
		return "⬇️ Low Glucose",
			fmt.Sprintf("Glucose is low: %s", formatValue(current, unit))
	case alertPredictedLow:
		return "⬇️ Low Predicted",
			fmt.Sprintf("Glucose predicted to reach %s in %.0f min (IOB %.2f U)",
				formatValue(m.settings.Alerts.LowThreshold, unit), result.LowInMinutes, result.IOB)
	case alertHigh:
		return "⬆️ High Glucose",
			fmt.Sprintf("Glucose is high: %s", formatValue(current, unit))
	case alertPredictedHigh:
		return "⬆️ High Predicted",
			fmt.Sprintf("Glucose predicted to reach %s in %.0f min",
				formatValue(m.settings.Alerts.HighThreshold, unit), result.HighInMinutes)
	}
	return "", ""
}

func formatValue(v float64, unit string) string {
	if unit == models.UnitMmolL {
		return fmt.Sprintf("%.1f mmol/L", v)
	}
	return fmt.Sprintf("%.0f mg/dL", v)
}

// desktopNotify sends a system notification
func desktopNotify(title, message string) error {
	// Use beeep for cross-platform notifications
	return beeep.Notify(title, message, "")
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send("apcontrol", "Test notification - alerts are working!")
}
