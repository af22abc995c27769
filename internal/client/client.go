// Package client talks to a running shamescroll daemon over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/shamescroll/internal/api"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/report"
)

// DefaultURL is where the daemon listens unless configured otherwise.
const DefaultURL = "http://127.0.0.1:8721"

// Client is a minimal daemon API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{BaseURL: baseURL, Timeout: 5 * time.Second}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon error: status=%d: %s", e.StatusCode, e.Message)
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}

// Health pings the daemon.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

// Status returns what the daemon is timing right now.
func (c *Client) Status(ctx context.Context) (models.TrackingStatus, error) {
	var out models.TrackingStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out)
	return out, err
}

// FocusState returns the current focus session.
func (c *Client) FocusState(ctx context.Context) (models.FocusState, error) {
	var out models.FocusState
	err := c.do(ctx, http.MethodGet, "/api/v1/focus", nil, &out)
	return out, err
}

// StartFocus starts a focus session for mission.
func (c *Client) StartFocus(ctx context.Context, mission string) (models.FocusState, error) {
	var out models.FocusState
	err := c.do(ctx, http.MethodPost, "/api/v1/focus/start", map[string]string{"mission": mission}, &out)
	return out, err
}

// StopFocus ends the focus session early.
func (c *Client) StopFocus(ctx context.Context) (models.FocusState, error) {
	var out models.FocusState
	err := c.do(ctx, http.MethodPost, "/api/v1/focus/stop", nil, &out)
	return out, err
}

// Streak returns the focus streak.
func (c *Client) Streak(ctx context.Context) (models.StreakData, error) {
	var out models.StreakData
	err := c.do(ctx, http.MethodGet, "/api/v1/streak", nil, &out)
	return out, err
}

// DismissWarning acknowledges the on-page warning.
func (c *Client) DismissWarning(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/warning/dismiss", nil, nil)
}

// SendTab reports a tab event. An empty event means tab_activated.
func (c *Client) SendTab(ctx context.Context, event, url string) (models.TrackingStatus, error) {
	var out models.TrackingStatus
	err := c.do(ctx, http.MethodPost, "/api/v1/tabs", map[string]string{"event": event, "url": url}, &out)
	return out, err
}

// Today returns the rolling day snapshots.
func (c *Client) Today(ctx context.Context) (api.TodayResponse, error) {
	var out api.TodayResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/today", nil, &out)
	return out, err
}

// Records returns the daily records of the last days days.
func (c *Client) Records(ctx context.Context, days int) ([]models.DailyRecord, error) {
	var out []models.DailyRecord
	err := c.do(ctx, http.MethodGet, "/api/v1/records?days="+strconv.Itoa(days), nil, &out)
	return out, err
}

// Report returns the dashboard aggregate of the last days days.
func (c *Client) Report(ctx context.Context, days int) (report.Report, error) {
	var out report.Report
	err := c.do(ctx, http.MethodGet, "/api/v1/report?days="+strconv.Itoa(days), nil, &out)
	return out, err
}

// Rules returns the blocking rules currently installed.
func (c *Client) Rules(ctx context.Context) ([]models.BlockRule, error) {
	var out []models.BlockRule
	err := c.do(ctx, http.MethodGet, "/api/v1/rules", nil, &out)
	return out, err
}

type timerHidden struct {
	IsTimerHidden bool `json:"isTimerHidden"`
}

// TimerHidden returns the overlay visibility preference.
func (c *Client) TimerHidden(ctx context.Context) (bool, error) {
	var out timerHidden
	err := c.do(ctx, http.MethodGet, "/api/v1/preferences/timer-hidden", nil, &out)
	return out.IsTimerHidden, err
}

// SetTimerHidden stores the overlay visibility preference.
func (c *Client) SetTimerHidden(ctx context.Context, hidden bool) error {
	return c.do(ctx, http.MethodPut, "/api/v1/preferences/timer-hidden", timerHidden{IsTimerHidden: hidden}, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := strings.TrimRight(c.BaseURL, "/") + endpoint
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach daemon at %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
