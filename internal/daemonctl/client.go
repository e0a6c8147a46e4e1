package daemonctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"demoforge/internal/analytics"
	"demoforge/internal/api"
	"demoforge/internal/progress"
)

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return e.Message
}

// Client talks to the daemon HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for bind, which may omit the scheme.
func NewClient(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrDaemonNotRunning
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base: base,
		// No timeout; progress streams block until the run ends or the caller
		// cancels.
		http: &http.Client{},
	}, nil
}

// BaseURL returns the daemon root URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dst any) error {
	if c == nil {
		return ErrDaemonNotRunning
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Kind = body.Kind
		apiErr.Message = body.Error
	}
	return apiErr
}

// Health returns the daemon's database health.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &out)
	return out, err
}

// Status returns the daemon's runtime status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// CreateProject stores a new pending project.
func (c *Client) CreateProject(ctx context.Context, req api.CreateRequest) (api.ProjectDetail, error) {
	var out api.ProjectResponse
	err := c.do(ctx, http.MethodPost, "/api/projects", nil, req, &out)
	return out.Project, err
}

// ListProjects returns projects, optionally filtered by stage.
func (c *Client) ListProjects(ctx context.Context, stages ...string) ([]api.Project, error) {
	query := url.Values{}
	for _, stage := range stages {
		if s := strings.TrimSpace(stage); s != "" {
			query.Add("stage", s)
		}
	}
	var out api.ProjectListResponse
	err := c.do(ctx, http.MethodGet, "/api/projects", query, nil, &out)
	return out.Projects, err
}

// GetProject returns a project with its artifacts.
func (c *Client) GetProject(ctx context.Context, id string) (api.ProjectDetail, error) {
	var out api.ProjectResponse
	err := c.do(ctx, http.MethodGet, api.ProjectPath(id), nil, nil, &out)
	return out.Project, err
}

// DeleteProject removes a project and its files.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, api.ProjectPath(id), nil, nil, nil)
}

// Run starts a background run on the daemon.
func (c *Client) Run(ctx context.Context, id string) (api.RunResponse, error) {
	var out api.RunResponse
	err := c.do(ctx, http.MethodPost, api.ProjectPath(id)+"/run", nil, nil, &out)
	return out, err
}

// Cancel asks an active run to stop.
func (c *Client) Cancel(ctx context.Context, id string) (api.CancelResult, error) {
	var out api.CancelResult
	err := c.do(ctx, http.MethodPost, api.ProjectPath(id)+"/cancel", nil, nil, &out)
	return out, err
}

// Analytics returns a project's view summary.
func (c *Client) Analytics(ctx context.Context, id string) (analytics.Summary, error) {
	var out api.AnalyticsResponse
	err := c.do(ctx, http.MethodGet, api.ProjectPath(id)+"/analytics", nil, nil, &out)
	return out.Summary, err
}

// CacheStats reports stage cache usage.
func (c *Client) CacheStats(ctx context.Context) (api.CacheStatsResponse, error) {
	var out api.CacheStatsResponse
	err := c.do(ctx, http.MethodGet, "/api/cache/stats", nil, nil, &out)
	return out, err
}

// PruneCache removes expired cache entries.
func (c *Client) PruneCache(ctx context.Context) (int, error) {
	var out api.CachePruneResponse
	err := c.do(ctx, http.MethodPost, "/api/cache/prune", nil, nil, &out)
	return out.Removed, err
}

// ClearCache removes entries for stage, or all entries when stage is empty.
func (c *Client) ClearCache(ctx context.Context, stage string) (int, error) {
	query := url.Values{}
	if s := strings.TrimSpace(stage); s != "" {
		query.Set("stage", s)
	}
	var out api.CachePruneResponse
	err := c.do(ctx, http.MethodDelete, "/api/cache", query, nil, &out)
	return out.Removed, err
}

// FollowProgress reads the project's event stream and calls fn for every
// snapshot. It returns the last snapshot once the daemon closes the stream.
func (c *Client) FollowProgress(ctx context.Context, id string, fn func(progress.Snapshot)) (progress.Snapshot, error) {
	var last progress.Snapshot
	if c == nil {
		return last, ErrDaemonNotRunning
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: api.ProgressPath(id)})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return last, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return last, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return last, decodeAPIError(resp)
	}

	err = readEvents(resp.Body, func(event string, data []byte) error {
		if event != "progress" {
			return nil
		}
		var snap progress.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("decode progress event: %w", err)
		}
		last = snap
		if fn != nil {
			fn(snap)
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return last, ctx.Err()
	}
	return last, err
}

// readEvents parses a text/event-stream body. Comment lines are skipped and
// multi-line data fields are joined with newlines.
func readEvents(r io.Reader, fn func(event string, data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	var (
		event string
		data  bytes.Buffer
	)
	dispatch := func() error {
		defer func() {
			event = ""
			data.Reset()
		}()
		if data.Len() == 0 {
			return nil
		}
		name := event
		if name == "" {
			name = "message"
		}
		return fn(name, bytes.TrimSuffix(data.Bytes(), []byte("\n")))
	}
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				event = value
			case "data":
				data.WriteString(value)
				data.WriteByte('\n')
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return dispatch()
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDaemonNotRunning) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsNotFound reports whether the daemon answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
