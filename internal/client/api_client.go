package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/stemsync/karaoke/internal/model"
)

// ErrJobNotFound is returned by Status when the server does not know the job.
var ErrJobNotFound = errors.New("job not found")

// APIClient talks to the karaoke processing API. It satisfies
// poller.StatusAPI.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

// NewAPIClient creates a client for the API rooted at baseURL.
func NewAPIClient(baseURL string, log *slog.Logger) *APIClient {
	if log == nil {
		log = slog.Default()
	}
	return &APIClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		log:     log,
	}
}

// Submit queues a separation job for sourceURL and returns its id.
func (c *APIClient) Submit(ctx context.Context, sourceURL string) (string, error) {
	var result model.ProcessResponse
	if err := c.post(ctx, "/process", &model.ProcessRequest{URL: sourceURL}, &result); err != nil {
		return "", err
	}
	return result.JobID, nil
}

// Status fetches the current state of a job.
func (c *APIClient) Status(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	var result model.StatusResponse
	if err := c.get(ctx, "/status/"+url.PathEscape(jobID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the API is reachable
func (c *APIClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("karaoke API unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// post sends a POST request with JSON body
func (c *APIClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *APIClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *APIClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.log.Debug("api request", slog.String("method", req.Method), slog.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("api response",
		slog.Int("status", resp.StatusCode),
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
	)

	if resp.StatusCode == http.StatusNotFound {
		return ErrJobNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("karaoke API error (status %d): %s", resp.StatusCode, errorMessage(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// errorMessage extracts the message of a JSON error envelope, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}
