// Package oanda implements ports.BrokerTerminal over the OANDA v20 REST API.
package oanda

import (
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
	"sync"
	"time"

	"forexbot/internal/ports"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"

	defaultLotUnits = 100000
	maxErrorBody    = 64 * 1024
)

// Config holds configuration specific to the OANDA client adapter.
type Config struct {
	Token     string
	AccountID string
	Practice  bool
	BaseURL   string        // Overrides the practice/live URL when set
	LotUnits  float64       // Units of base currency in one lot
	Timeout   time.Duration // HTTP client timeout
	Logger    ports.Logger
}

// Client implements ports.BrokerTerminal against one OANDA account.
type Client struct {
	baseURL    string
	token      string
	accountID  string
	lotUnits   float64
	httpClient *http.Client
	logger     ports.Logger

	mu          sync.RWMutex
	connected   bool
	currency    string
	instruments map[string]instrument
}

var _ ports.BrokerTerminal = (*Client)(nil)

// New creates a new OANDA client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for OANDA client")
	}
	if cfg.Token == "" || cfg.AccountID == "" {
		return nil, fmt.Errorf("OANDA token and account ID are required: %w", ports.ErrConfigurationError)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = LiveURL
		if cfg.Practice {
			baseURL = PracticeURL
		}
	}
	lotUnits := cfg.LotUnits
	if lotUnits <= 0 {
		lotUnits = defaultLotUnits
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cfg.Logger.Info(context.Background(), "OANDA client configured", map[string]interface{}{
		"baseURL":   baseURL,
		"accountID": cfg.AccountID,
	})
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       cfg.Token,
		accountID:   cfg.AccountID,
		lotUnits:    lotUnits,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      cfg.Logger,
		instruments: make(map[string]instrument),
	}, nil
}

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("oanda http %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("oanda http %d: %s", e.StatusCode, e.Message)
}

// do sends one request and decodes a 2xx JSON body into out. Non-2xx answers are
// returned as *APIError with the raw body kept for callers that decode rejections.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8*maxErrorBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && er.ErrorMessage != "" {
			apiErr.Code = er.ErrorCode
			apiErr.Message = er.ErrorMessage
		}
		return raw, apiErr
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return raw, nil
}

// handleError translates transport and API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var mappedErr error
	var apiErr *APIError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		fields["status"] = apiErr.StatusCode
		fields["apiErrorCode"] = apiErr.Code
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			mappedErr = ports.ErrAuthenticationFailed
		case apiErr.StatusCode == http.StatusNotFound:
			mappedErr = ports.ErrNotFound
		case apiErr.StatusCode == http.StatusTooManyRequests:
			mappedErr = ports.ErrRateLimited
		case apiErr.StatusCode == http.StatusBadRequest:
			mappedErr = ports.ErrInvalidRequest
		case apiErr.StatusCode >= 500:
			mappedErr = ports.ErrConnectionFailed
		default:
			mappedErr = ports.ErrUnknown
		}
	case errors.Is(err, context.DeadlineExceeded):
		mappedErr = ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		mappedErr = ports.ErrContextCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		mappedErr = ports.ErrTimeout
	case errors.As(err, &netErr):
		mappedErr = ports.ErrConnectionFailed
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			mappedErr = ports.ErrConnectionFailed
		} else {
			mappedErr = ports.ErrUnknown
		}
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
}

func (c *Client) requireConnected(op string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return fmt.Errorf("%s: %w", op, ports.ErrNotConnected)
	}
	return nil
}

func (c *Client) accountPath(suffix string) string {
	return "/v3/accounts/" + url.PathEscape(c.accountID) + suffix
}
