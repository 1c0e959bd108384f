package nightscout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/mrcode/apcontrol/internal/models"
)

func serveJSON(t *testing.T, path string, v any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHashSecret(t *testing.T) {
	result := hashSecret("test")
	expected := "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3"

	if result != expected {
		t.Errorf("hashSecret(\"test\") = %s, want %s", result, expected)
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("https://test.example.com/", "secret", "token", true)

	if client.baseURL != "https://test.example.com" {
		t.Errorf("baseURL = %s, should not have trailing slash", client.baseURL)
	}
	if client.apiSecret != "secret" || client.apiToken != "token" || !client.useToken {
		t.Errorf("credentials not stored: %+v", client)
	}
}

func TestNewClientFromSettings(t *testing.T) {
	client := NewClientFromSettings(models.NightscoutSettings{
		URL:       "https://ns.example.com",
		APISecret: "secret",
	})

	if client.baseURL != "https://ns.example.com" {
		t.Errorf("baseURL = %s", client.baseURL)
	}
	if client.useToken {
		t.Error("useToken should be false")
	}
}

func TestClient_GetEntries(t *testing.T) {
	now := time.Now()
	from := now.Add(-1 * time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/entries/sgv" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("find[date][$gte]"); got != strconv.FormatInt(from.UnixMilli(), 10) {
			t.Errorf("find[date][$gte] = %s", got)
		}
		if got := r.URL.Query().Get("count"); got != "24" {
			t.Errorf("count = %s, want 24", got)
		}

		// Newest first, as Nightscout does
		entries := []models.GlucoseEntry{
			{SGV: 120, Date: now.UnixMilli()},
			{SGV: 115, Date: now.Add(-5 * time.Minute).UnixMilli()},
			{SGV: 118, Date: now.Add(-10 * time.Minute).UnixMilli()},
		}
		_ = json.NewEncoder(w).Encode(entries)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", false)
	entries, err := client.GetEntries(context.Background(), from, time.Time{}, 24)

	if err != nil {
		t.Fatalf("GetEntries() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Got %d entries, want 3", len(entries))
	}
	if entries[0].SGV != 118 || entries[2].SGV != 120 {
		t.Errorf("entries not sorted oldest first: %+v", entries)
	}
}

func TestClient_GetEntries_Empty(t *testing.T) {
	server := serveJSON(t, "/api/v1/entries/sgv", []models.GlucoseEntry{})

	client := NewClient(server.URL, "", "", false)
	_, err := client.GetEntries(context.Background(), time.Time{}, time.Time{}, 0)

	if !errors.Is(err, ErrNoData) {
		t.Errorf("GetEntries() error = %v, want ErrNoData", err)
	}
}

func TestClient_GetTreatments(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	server := serveJSON(t, "/api/v1/treatments", []models.Treatment{
		{EventType: "Correction Bolus", Insulin: 1.5, CreatedAt: base.Add(time.Hour).Format(time.RFC3339)},
		{EventType: "Meal Bolus", Insulin: 4, Carbs: 40, Date: base.UnixMilli()},
	})

	client := NewClient(server.URL, "", "", false)
	treatments, err := client.GetTreatments(context.Background(), base.Add(-time.Hour), time.Time{})

	if err != nil {
		t.Fatalf("GetTreatments() error = %v", err)
	}
	if len(treatments) != 2 {
		t.Fatalf("Got %d treatments, want 2", len(treatments))
	}
	if treatments[0].EventType != "Meal Bolus" {
		t.Errorf("treatments not sorted oldest first: %+v", treatments)
	}

	doses := models.DosesFromTreatments(treatments, base)
	if len(doses) != 2 || doses[1].Minute != 60 || doses[1].Units != 1.5 {
		t.Errorf("doses = %+v", doses)
	}
}

func TestClient_GetStatus(t *testing.T) {
	status := models.ServerStatus{
		Status:     "ok",
		Name:       "test-nightscout",
		Version:    "14.0.0",
		APIEnabled: true,
		Settings:   models.ServerSettings{Units: "mmol"},
	}
	server := serveJSON(t, "/api/v1/status", status)

	client := NewClient(server.URL, "", "", false)
	got, err := client.GetStatus(context.Background())

	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.Name != "test-nightscout" {
		t.Errorf("Name = %s, want test-nightscout", got.Name)
	}
	if got.Unit() != models.UnitMmolL {
		t.Errorf("Unit() = %s, want %s", got.Unit(), models.UnitMmolL)
	}
}

func TestClient_AuthHeaders(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		token    string
		useToken bool
		header   string
		want     string
	}{
		{"token", "", "testtoken123", true, "Authorization", "Bearer testtoken123"},
		{"secret", "mysecret", "", false, "API-SECRET", hashSecret("mysecret")},
		{"token disabled falls back to secret", "mysecret", "testtoken123", false, "API-SECRET", hashSecret("mysecret")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get(tt.header); got != tt.want {
					t.Errorf("%s header = %s, want %s", tt.header, got, tt.want)
				}
				_ = json.NewEncoder(w).Encode(models.ServerStatus{Status: "ok"})
			}))
			defer server.Close()

			client := NewClient(server.URL, tt.secret, tt.token, tt.useToken)
			if _, err := client.GetStatus(context.Background()); err != nil {
				t.Fatalf("GetStatus() error = %v", err)
			}
		})
	}
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("Unauthorized"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", false)
	_, err := client.GetStatus(context.Background())

	if err == nil {
		t.Error("Expected error for 401 response")
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	server := serveJSON(t, "/api/v1/status", models.ServerStatus{Status: "ok"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "", "", false)
	if _, err := client.GetStatus(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("GetStatus() error = %v, want context.Canceled", err)
	}
}
