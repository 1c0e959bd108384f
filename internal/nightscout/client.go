// Package nightscout fetches recorded glucose entries and insulin treatments
// from a Nightscout server for offline replay.
package nightscout

import (
	"context"
	"crypto/sha1" //nolint:gosec // Required for Nightscout API secret hashing (legacy API requirement)
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mrcode/apcontrol/internal/models"
)

// ErrNoData is returned when the server has no entries for the requested window
var ErrNoData = errors.New("no data returned")

// Client handles communication with the Nightscout API
type Client struct {
	baseURL    string
	apiSecret  string
	apiToken   string
	useToken   bool
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Nightscout client
func NewClient(baseURL, apiSecret, apiToken string, useToken bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		apiToken:  apiToken,
		useToken:  useToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
}

// NewClientFromSettings creates a client from the nightscout section of the settings
func NewClientFromSettings(s models.NightscoutSettings) *Client {
	return NewClient(s.URL, s.APISecret, s.APIToken, s.UseToken)
}

// WithLogger sets the logger used for request tracing
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// hashSecret generates SHA1 hash of the API secret
// Note: SHA1 is required for Nightscout API compatibility
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // Required for Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// buildRequest creates an HTTP request with proper authentication
func (c *Client) buildRequest(ctx context.Context, method, endpoint string, params url.Values) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	// Add authentication
	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

// get executes a GET request and decodes the JSON body into out
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := c.buildRequest(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("nightscout request",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s: %w", endpoint, err)
	}
	return nil
}

// GetStatus retrieves the Nightscout server status
func (c *Client) GetStatus(ctx context.Context) (*models.ServerStatus, error) {
	var status models.ServerStatus
	if err := c.get(ctx, "/api/v1/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func rangeParams(field string, from, to time.Time, count int) url.Values {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("find["+field+"][$gte]", rangeValue(field, from))
	}
	if !to.IsZero() {
		params.Set("find["+field+"][$lte]", rangeValue(field, to))
	}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}
	return params
}

// Entries are filtered on epoch millis, treatments on ISO timestamps
func rangeValue(field string, t time.Time) string {
	if field == "date" {
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return t.UTC().Format(time.RFC3339)
}

// GetEntries retrieves glucose entries for a time range, oldest first
func (c *Client) GetEntries(ctx context.Context, from, to time.Time, count int) ([]models.GlucoseEntry, error) {
	var entries []models.GlucoseEntry
	if err := c.get(ctx, "/api/v1/entries/sgv", rangeParams("date", from, to, count), &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoData
	}

	// Nightscout returns newest first
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	return entries, nil
}

// GetEntriesHours retrieves glucose entries for the last N hours
func (c *Client) GetEntriesHours(ctx context.Context, hours int) ([]models.GlucoseEntry, error) {
	now := time.Now()
	from := now.Add(-time.Duration(hours) * time.Hour)
	// 5 minute sampling, with headroom for devices that upload more often
	return c.GetEntries(ctx, from, now, hours*12*2)
}

// GetTreatments retrieves treatments for a time range, oldest first
func (c *Client) GetTreatments(ctx context.Context, from, to time.Time) ([]models.Treatment, error) {
	var treatments []models.Treatment
	if err := c.get(ctx, "/api/v1/treatments", rangeParams("created_at", from, to, 0), &treatments); err != nil {
		return nil, err
	}

	sort.SliceStable(treatments, func(i, j int) bool {
		return treatments[i].Time().Before(treatments[j].Time())
	})
	return treatments, nil
}
