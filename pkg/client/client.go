// Package client is a thin HTTP client for a running simulation's status
// API: liveness, simulated clock position, live counters, and the
// recorded event trace.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"repram/internal/eventlog"
	"repram/internal/stats"
)

// Client talks to one simulation's status API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client pointed at baseURL (e.g. "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Status is the decoded response of GET /status.
type Status struct {
	Status  string  `json:"status"`
	Uptime  string  `json:"uptime"`
	SimTime float64 `json:"sim_time"`
}

// Healthy reports whether GET /health returns 200.
func (c *Client) Healthy() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, fmt.Errorf("client: health request failed: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Status fetches the simulation's current run status and simulated clock.
func (c *Client) Status() (Status, error) {
	var s Status
	err := c.getJSON("/status", &s)
	return s, err
}

// Stats fetches the simulation's live counters and derived averages.
func (c *Client) Stats() (stats.Snapshot, error) {
	var s stats.Snapshot
	err := c.getJSON("/stats", &s)
	return s, err
}

// EventLogQuery narrows an Eventlog call; a zero value fetches every
// record. Categories, when non-empty, is matched case-insensitively
// against the server's category names.
type EventLogQuery struct {
	Start      float64
	End        float64
	Categories []string
}

// EventLog fetches the recorded trace, optionally filtered by q.
func (c *Client) EventLog(q EventLogQuery) ([]eventlog.Record, error) {
	v := url.Values{}
	if q.Start != 0 {
		v.Set("start", strconv.FormatFloat(q.Start, 'f', -1, 64))
	}
	if q.End != 0 {
		v.Set("end", strconv.FormatFloat(q.End, 'f', -1, 64))
	}
	if len(q.Categories) > 0 {
		v.Set("category", strings.Join(q.Categories, ","))
	}

	path := "/eventlog"
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}

	var recs []eventlog.Record
	err := c.getJSON(path, &recs)
	return recs, err
}

func (c *Client) getJSON(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("client: request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("client: %s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", path, err)
	}
	return nil
}
