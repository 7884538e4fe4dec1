package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stemsync/karaoke/internal/config"
)

// StemSeparator splits a mixed audio file into instrumental and vocal stems
type StemSeparator interface {
	Separate(ctx context.Context, req *SeparateRequest) (*SeparateResponse, error)
}

// SeparatorClient implements StemSeparator for the MDX-Net microservice.
// Paths are exchanged rather than audio bytes, so the service must share the
// worker's tmp directory.
type SeparatorClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// SeparateRequest represents the request for stem separation
type SeparateRequest struct {
	InputPath string `json:"input_path"`
	OutputDir string `json:"output_dir"`
	Model     string `json:"model,omitempty"`
}

// SeparateResponse lists the stem files written by the service
type SeparateResponse struct {
	Instrumental string  `json:"instrumental"`
	Vocals       string  `json:"vocals"`
	Duration     float64 `json:"duration,omitempty"`
}

// NewSeparatorClient creates a new separation service client
func NewSeparatorClient(cfg *config.SeparatorConfig) *SeparatorClient {
	return &SeparatorClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
		model:   cfg.Model,
	}
}

// Separate runs the separation model on req.InputPath
func (c *SeparatorClient) Separate(ctx context.Context, req *SeparateRequest) (*SeparateResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	var result SeparateResponse
	if err := c.post(ctx, "/separate", req, &result); err != nil {
		return nil, err
	}
	if result.Instrumental == "" || result.Vocals == "" {
		return nil, fmt.Errorf("separator returned incomplete stems")
	}
	return &result, nil
}

// HealthCheck checks if the separation service is available
func (c *SeparatorClient) HealthCheck(ctx context.Context) error {
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
		return fmt.Errorf("separator service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// post sends a POST request with JSON body and parses the response
func (c *SeparatorClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("separator service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *SeparatorClient) IsConfigured() bool {
	return c.baseURL != ""
}
