package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
)

const (
	LatestPath        = "/control/latest"
	SetParametersPath = "/control/set-parameters"

	maxErrorBody = 4 << 10
)

// Endpoints are the fully resolved backend URLs.
type Endpoints struct {
	Latest        string
	SetParameters string
}

// ResolveEndpoints joins host and basePath. A basePath that is already an
// absolute http(s) URL is used as is and host is ignored.
func ResolveEndpoints(host, basePath string) (Endpoints, error) {
	base := strings.TrimSpace(basePath)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		if strings.TrimSpace(host) == "" {
			return Endpoints{}, fmt.Errorf("api host is required for relative base path %q", basePath)
		}
		base = strings.TrimRight(host, "/") + "/" + strings.Trim(base, "/")
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base)
	if err != nil {
		return Endpoints{}, fmt.Errorf("parse api base %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoints{}, fmt.Errorf("api base %q must include scheme and host", base)
	}
	return Endpoints{
		Latest:        base + LatestPath,
		SetParameters: base + SetParametersPath,
	}, nil
}

// StatusError is returned for any non-2xx backend response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

type Option func(*Client)

// WithHTTPClient swaps the underlying *http.Client (tests, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// Client talks to the control backend. It has no request timeout of its
// own: a hung poll is superseded by the next tick, not timed out.
type Client struct {
	http      *http.Client
	endpoints Endpoints
}

func New(endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		endpoints: endpoints,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Name() string { return "http" }

func (c *Client) Endpoints() Endpoints { return c.endpoints }

// Fetch reads GET /control/latest. Absent sections decode as nil.
func (c *Client) Fetch(ctx context.Context) (*domain.LatestSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.Latest, nil)
	if err != nil {
		return nil, fmt.Errorf("build latest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("fetch latest", resp); err != nil {
		return nil, err
	}

	var snap domain.LatestSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode latest: %w", err)
	}
	return &snap, nil
}

// SetParameters posts cmd and returns the decoded acknowledgement.
func (c *Client) SetParameters(ctx context.Context, cmd domain.ControlCommand) (map[string]any, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.SetParameters, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build set-parameters request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("set parameters: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("set parameters", resp); err != nil {
		return nil, err
	}

	ack := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("decode set-parameters response: %w", err)
	}
	return ack, nil
}

// Send implements ports.CommandSender.
func (c *Client) Send(ctx context.Context, cmd domain.ControlCommand) error {
	_, err := c.SetParameters(ctx, cmd)
	return err
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(raw)),
	}
}

var (
	_ ports.TelemetrySource = (*Client)(nil)
	_ ports.CommandSender   = (*Client)(nil)
)
