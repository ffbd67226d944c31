// Package provider implements the client for the external rewriting provider.
// The provider runs rewrites as asynchronous jobs: a document is submitted,
// then its status is queried until the output is ready.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/humanizer/humanizer/internal/metrics"
	"github.com/humanizer/humanizer/internal/model"
)

const (
	// DefaultTimeout is the total request timeout.
	DefaultTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second

	// maxResponseBytes bounds how much of a provider response is read.
	maxResponseBytes = 4 << 20
)

// HeaderAPIKey carries the provider credential.
const HeaderAPIKey = "apikey"

// Sentinel errors for provider operations.
var (
	ErrProviderUnreachable     = errors.New("rewriting provider unreachable")
	ErrProviderRejected        = errors.New("rewriting provider rejected request")
	ErrNoJobHandle             = errors.New("rewriting provider returned no document id")
	ErrMalformedStatusResponse = errors.New("malformed document status response")
)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RateLimit is the maximum outbound requests per second. Zero disables limiting.
	RateLimit float64
	// HTTPClient overrides the default transport. Used by tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    metrics.Recorder
}

// Client talks to the rewriting provider's HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewHTTPClient creates an HTTP client configured for provider calls.
// It has appropriate timeouts and does not follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		// A redirect would resend the API key to another host.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// New creates a provider Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(opts.Timeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    httpClient,
		limiter: limiter,
		logger:  logger.With("component", "provider"),
		metrics: recorder,
	}
}

type submitRequest struct {
	Content     string `json:"content"`
	Readability string `json:"readability"`
	Purpose     string `json:"purpose"`
	Strength    string `json:"strength"`
	Model       string `json:"model"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type documentRequest struct {
	ID string `json:"id"`
}

type documentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output string `json:"output"`
}

// Submit sends text for rewriting and returns the provider's document id.
func (c *Client) Submit(ctx context.Context, text string, opts model.RewriteOptions) (string, error) {
	opts = opts.WithDefaults()
	body := submitRequest{
		Content:     text,
		Readability: opts.Readability,
		Purpose:     opts.Purpose,
		Strength:    opts.Strength,
		Model:       opts.ModelVersion,
	}

	data, err := c.post(ctx, "submit", "/submit", body)
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrNoJobHandle, err)
	}
	id := strings.TrimSpace(resp.ID)
	if id == "" {
		return "", ErrNoJobHandle
	}

	c.logger.Debug("document submitted", "document_id", id, "content_length", len(text))
	return id, nil
}

// PollOnce queries the status of a submitted document a single time.
func (c *Client) PollOnce(ctx context.Context, documentID string) (*model.RewriteJob, error) {
	data, err := c.post(ctx, "document", "/document", documentRequest{ID: documentID})
	if err != nil {
		return nil, err
	}

	var resp documentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStatusResponse, err)
	}
	if resp.Status == "" {
		return nil, fmt.Errorf("%w: missing status", ErrMalformedStatusResponse)
	}

	job := &model.RewriteJob{DocumentID: documentID, Status: model.JobPolling}
	switch {
	case resp.Status == model.ProviderStatusDone && resp.Output != "":
		job.Status = model.JobDone
		job.Output = resp.Output
	case model.IsProviderFailureStatus(resp.Status):
		job.Status = model.JobFailed
	}
	return job, nil
}

// post sends a JSON request and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAPIKey, c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveProviderDuration(op, time.Since(start))
	if err != nil {
		c.metrics.IncProviderRequest(op, "unreachable")
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.IncProviderRequest(op, "unreachable")
		return nil, fmt.Errorf("%w: read body: %v", ErrProviderUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.IncProviderRequest(op, "rejected")
		c.logger.Warn("provider rejected request",
			"op", op,
			"http_status", resp.StatusCode,
		)
		return nil, fmt.Errorf("%w: HTTP %d", ErrProviderRejected, resp.StatusCode)
	}

	c.metrics.IncProviderRequest(op, "ok")
	return data, nil
}
