package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "tami-graph/backend/pkg/errors"
	"tami-graph/backend/pkg/logger"
)

const serviceProvider = "service"

// ServiceClient calls the extraction service over HTTP
type ServiceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

type extractRequest struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
}

type extractResponse struct {
	Entities       []Candidate `json:"entities"`
	TotalExtracted int         `json:"total_extracted"`
	Language       string      `json:"language"`
}

// HealthStatus is the extraction service's health report
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Model   string `json:"model"`
}

// NewServiceClient creates a client for the service at baseURL. An empty
// apiKey sends no X-API-Key header.
func NewServiceClient(baseURL, apiKey string, timeout time.Duration) *ServiceClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("extraction"),
	}
}

// Name identifies the provider in logs and errors
func (c *ServiceClient) Name() string {
	return serviceProvider
}

// Extract posts the transcript to /extract
func (c *ServiceClient) Extract(ctx context.Context, transcript, language string) ([]Candidate, error) {
	jsonData, err := json.Marshal(extractRequest{Transcript: transcript, Language: language})
	if err != nil {
		return nil, apperrors.NewExtractionFailed(serviceProvider, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := c.baseURL + "/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, apperrors.NewExtractionFailed(serviceProvider, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Debug("Requesting extraction",
		zap.String("url", url),
		zap.String("language", language),
		zap.Int("transcript_chars", len(transcript)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExtractionFailed(serviceProvider, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewExtractionFailed(serviceProvider, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Extraction service error",
			zap.Int("status_code", resp.StatusCode),
			zap.String("url", url),
			zap.String("response_body", truncate(string(body), 500)),
		)
		return nil, apperrors.NewExtractionFailed(serviceProvider,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var out extractResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.NewExtractionFailed(serviceProvider, fmt.Errorf("failed to decode response: %w", err))
	}

	c.logger.Debug("Extraction completed",
		zap.Int("entities", len(out.Entities)),
		zap.String("language", out.Language),
	)
	if out.Entities == nil {
		return []Candidate{}, nil
	}
	return out.Entities, nil
}

// Health fetches /health
func (c *ServiceClient) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExtractionFailed(serviceProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewExtractionFailed(serviceProvider, fmt.Errorf("health status %d", resp.StatusCode))
	}
	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, apperrors.NewExtractionFailed(serviceProvider, fmt.Errorf("failed to decode health: %w", err))
	}
	return &status, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
