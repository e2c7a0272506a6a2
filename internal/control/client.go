package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// ErrUnreachable is returned when the resident's socket does not answer.
var ErrUnreachable = errors.New("resident not reachable")

// Client talks to the resident over its unix socket.
type Client struct {
	http *http.Client
	base string
}

// NewClient creates a client for the socket at path.
func NewClient(socket string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}
	return &Client{
		http: &http.Client{Transport: transport, Timeout: 10 * time.Second},
		base: "http://sitemon",
	}
}

// NewClientWithHTTP creates a client with a custom http.Client and base URL (for testing).
func NewClientWithHTTP(hc *http.Client, base string) *Client {
	return &Client{http: hc, base: base}
}

// AddResult is the outcome of AddDomains.
type AddResult struct {
	Added []string
	State domain.Snapshot
	// Warning is set when domains were saved but the hosts write failed.
	Warning string
}

// Health returns the resident's status.
func (c *Client) Health(ctx context.Context) (*Status, error) {
	var out struct {
		Resident Status `json:"resident"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out.Resident, nil
}

// State returns the latest snapshot.
func (c *Client) State(ctx context.Context) (domain.Snapshot, error) {
	var out struct {
		State domain.Snapshot `json:"state"`
	}
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &out)
	return out.State, err
}

// AddDomains adds each domain to the blocklist.
func (c *Client) AddDomains(ctx context.Context, domains ...string) (*AddResult, error) {
	var out addDomainsResponse
	if err := c.do(ctx, http.MethodPost, "/api/domains", addDomainsRequest{Domains: domains}, &out); err != nil {
		return nil, err
	}
	return &AddResult{Added: out.Added, State: out.State, Warning: out.Error}, nil
}

// StartTimer starts a temporary unblock. Empty minutes uses the saved duration.
func (c *Client) StartTimer(ctx context.Context, minutes string) (domain.Snapshot, error) {
	return c.stateCall(ctx, "/api/timer", startTimerRequest{Minutes: minutes})
}

// Show marks the interactive surface visible.
func (c *Client) Show(ctx context.Context) (domain.Snapshot, error) {
	return c.stateCall(ctx, "/api/show", nil)
}

// Hide marks the interactive surface hidden.
func (c *Client) Hide(ctx context.Context) (domain.Snapshot, error) {
	return c.stateCall(ctx, "/api/hide", nil)
}

// Quit asks the resident to re-block and exit.
func (c *Client) Quit(ctx context.Context) (domain.Snapshot, error) {
	var out struct {
		State domain.Snapshot `json:"state"`
		Error string          `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/quit", nil, &out); err != nil {
		return domain.Snapshot{}, err
	}
	if out.Error != "" {
		return out.State, fmt.Errorf("resident stopped but re-block failed: %s", out.Error)
	}
	return out.State, nil
}

// History returns up to limit recent sessions.
func (c *Client) History(ctx context.Context, limit int) ([]domain.Session, error) {
	var out struct {
		Sessions []domain.Session `json:"sessions"`
	}
	err := c.do(ctx, http.MethodGet, "/api/history?limit="+strconv.Itoa(limit), nil, &out)
	return out.Sessions, err
}

func (c *Client) stateCall(ctx context.Context, path string, body interface{}) (domain.Snapshot, error) {
	var out struct {
		State domain.Snapshot `json:"state"`
	}
	err := c.do(ctx, http.MethodPost, path, body, &out)
	return out.State, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Message == "" {
			return NewAPIError(resp.StatusCode, "http_error", resp.Status)
		}
		envelope.Error.Status = resp.StatusCode
		return &envelope.Error
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
