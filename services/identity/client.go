package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default HTTP client timeout for provider calls
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrConflict is returned when the email already exists at the provider
	ErrConflict = errors.New("identity already exists")
	// ErrNotFound is returned when the provider has no user with the given id
	ErrNotFound = errors.New("identity not found")
)

// ProviderError is a transient or unexpected identity-provider failure.
// Calls that return it may be retried by the caller; the client itself only
// retries 429 and 5xx responses.
type ProviderError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error (status %d): %s", e.StatusCode, e.Message)
}

// RetryConfig holds retry configuration for failed requests
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// Config holds configuration for the identity provider client
type Config struct {
	Endpoint    string
	APIKey      string
	ProjectID   string
	Timeout     time.Duration
	RetryConfig *RetryConfig
}

// Client talks to the external identity provider's account lifecycle API.
// It is deliberately never enlisted in a database transaction: every call is
// an independent, non-rollbackable side effect.
type Client struct {
	endpoint    string
	apiKey      string
	projectID   string
	httpClient  *http.Client
	retryConfig RetryConfig
}

// NewClient creates a new identity provider client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	retryConfig := DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}

	return &Client{
		endpoint:  config.Endpoint,
		apiKey:    config.APIKey,
		projectID: config.ProjectID,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retryConfig: retryConfig,
	}
}

// IsRetryableStatusCode checks if an HTTP status code should trigger a retry.
// Conflicts and not-founds are definitive answers, never retried.
func IsRetryableStatusCode(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}

// CalculateBackoff returns the backoff duration for a given retry attempt.
// Exponential: initialBackoff * 2^attempt, capped at maxBackoff.
func CalculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := config.InitialBackoff * time.Duration(1<<uint(attempt))
	if backoff > config.MaxBackoff {
		return config.MaxBackoff
	}
	return backoff
}

type apiError struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// doRequest performs one provider API call, retrying transient failures.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(CalculateBackoff(attempt-1, c.retryConfig)):
			}
		}

		err := c.doOnce(ctx, method, path, payload, result)
		if err == nil {
			return nil
		}

		var provErr *ProviderError
		if errors.As(err, &provErr) && IsRetryableStatusCode(provErr.StatusCode) {
			lastErr = err
			continue
		}
		return err
	}

	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, result interface{}) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.projectID != "" {
		req.Header.Set("X-Project-ID", c.projectID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{StatusCode: resp.StatusCode, Message: "failed to read response body"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch resp.StatusCode {
		case http.StatusConflict:
			return ErrConflict
		case http.StatusNotFound:
			return ErrNotFound
		}

		var apiErr apiError
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = string(respBody)
		}
		return &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    apiErr.Message,
			RequestID:  apiErr.RequestID,
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
