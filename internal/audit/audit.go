// Package audit submits a finished answer to an external polishing service
// and waits for the polished version. Every failure falls back to the draft.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by Submit when no service URL is set.
var ErrNotConfigured = errors.New("audit service URL is not configured")

// Task statuses reported by the service.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Defaults for Config.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 30
)

// Request is the draft sent for polishing. Field names follow the audit
// service's camelCase contract.
type Request struct {
	Question     string   `json:"question"`
	Quantifiable bool     `json:"quantifiable"`
	DraftAnswer  string   `json:"draftAnswer"`
	Sources      []string `json:"sources"`
	// CorrelationID is echoed by the service for log correlation.
	CorrelationID string `json:"correlationId,omitempty"`
}

// Response is the outcome of Polish. OK is always true; Polished reports
// whether the answer came from the service.
type Response struct {
	OK       bool     `json:"ok"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Polished bool     `json:"polished"`
	TaskID   string   `json:"task_id,omitempty"`
}

// Config configures a Client.
type Config struct {
	// URL is the service base URL. Empty disables polishing.
	URL          string
	PollInterval time.Duration
	MaxAttempts  int
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client talks to the polishing service.
type Client struct {
	baseURL      string
	pollInterval time.Duration
	maxAttempts  int
	http         *http.Client
	breaker      *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		pollInterval: interval,
		maxAttempts:  attempts,
		http:         httpClient,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "audit",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		logger: logger,
	}
}

// Configured reports whether a service URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Polish returns the polished answer, or the draft unchanged if the service
// is unconfigured, unreachable, reports failure, or never finishes.
func (c *Client) Polish(ctx context.Context, req Request) Response {
	draft := Response{OK: true, Answer: req.DraftAnswer, Sources: req.Sources}
	if draft.Sources == nil {
		draft.Sources = []string{}
	}
	if !c.Configured() {
		return draft
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.New().String()
	}
	log := c.logger.With(zap.String("correlation_id", req.CorrelationID))

	taskID, err := c.Submit(ctx, req)
	if err != nil {
		log.Warn("audit submit failed, keeping draft", zap.Error(err))
		return draft
	}
	draft.TaskID = taskID

	res, err := c.Wait(ctx, taskID)
	if err != nil {
		log.Warn("audit did not complete, keeping draft", zap.String("task_id", taskID), zap.Error(err))
		return draft
	}

	sources := res.Sources
	if sources == nil {
		sources = []string{}
	}
	log.Debug("audit completed", zap.String("task_id", taskID))
	return Response{OK: true, Answer: res.Answer, Sources: sources, Polished: true, TaskID: taskID}
}

type submitResponse struct {
	ID string `json:"id"`
}

// Submit creates a polishing task and returns its ID.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal audit request: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.do(ctx, http.MethodPost, c.baseURL+"/tasks", body)
		if err != nil {
			return nil, err
		}
		var sr submitResponse
		if err := json.Unmarshal(data, &sr); err != nil {
			return nil, fmt.Errorf("decode submit response: %w", err)
		}
		if sr.ID == "" {
			return nil, errors.New("submit response has no task id")
		}
		return sr.ID, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// Result is a completed task's payload.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type taskStatus struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Wait polls the task every poll interval until it completes, fails, or the
// attempt budget runs out.
func (c *Client) Wait(ctx context.Context, taskID string) (*Result, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		st, err := c.status(ctx, taskID)
		if err != nil {
			c.logger.Debug("audit poll failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		switch st.Status {
		case StatusCompleted:
			var res Result
			if err := json.Unmarshal(st.Result, &res); err != nil {
				return nil, fmt.Errorf("decode audit result: %w", err)
			}
			if strings.TrimSpace(res.Answer) == "" {
				return nil, errors.New("audit result has no answer")
			}
			return &res, nil
		case StatusFailed:
			return nil, fmt.Errorf("audit task failed: %s", st.Error)
		}
	}
	return nil, fmt.Errorf("audit task %s not finished after %d attempts", taskID, c.maxAttempts)
}

func (c *Client) status(ctx context.Context, taskID string) (*taskStatus, error) {
	data, err := c.do(ctx, http.MethodGet, c.baseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	var st taskStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode task status: %w", err)
	}
	return &st, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("create audit request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audit request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read audit response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("audit HTTP %d", resp.StatusCode)
	}
	return data, nil
}
