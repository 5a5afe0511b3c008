package action

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/log"
)

type (
	// HTTPClient invokes actions served by remote HTTP endpoints
	HTTPClient struct {
		httpClient *http.Client
	}

	// HTTPAction is an action bound to one endpoint
	HTTPAction struct {
		client   *HTTPClient
		endpoint string
	}

	// Request is the JSON body posted to an action endpoint
	Request struct {
		Kwargs   api.Args     `json:"kwargs,omitempty"`
		Metadata api.Metadata `json:"metadata,omitempty"`
		Args     []any        `json:"args"`
	}

	// Response is the JSON body an action endpoint answers with
	Response struct {
		Result  any    `json:"result,omitempty"`
		Error   string `json:"error,omitempty"`
		Success bool   `json:"success"`
	}
)

var (
	ErrActionUnsuccessful = errors.New("action returned success=false")
	ErrHTTPError          = errors.New("action returned HTTP error")
)

var _ Invocable = (*HTTPAction)(nil)

// NewHTTPClient creates an HTTPClient whose requests time out after timeout
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint binds the client to an endpoint URL
func (c *HTTPClient) Endpoint(url string) *HTTPAction {
	return &HTTPAction{client: c, endpoint: url}
}

// Invoke posts the call's arguments and returns the endpoint's result
func (a *HTTPAction) Invoke(ctx context.Context, c *Call) (any, error) {
	body, err := json.Marshal(Request{
		Args:     c.Args,
		Kwargs:   c.Kwargs,
		Metadata: c.Metadata,
	})
	if err != nil {
		slog.Error("Failed to marshal action request",
			log.Action(a.endpoint),
			log.Error(err))
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.endpoint, bytes.NewBuffer(body),
	)
	if err != nil {
		slog.Error("Failed to create HTTP request",
			log.Action(a.endpoint),
			log.Error(err))
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Tailor-Engine/1.0")

	start := time.Now()
	resp, err := a.client.httpClient.Do(req)
	dur := time.Since(start)

	if err != nil {
		slog.Error("HTTP request failed",
			log.Action(a.endpoint),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read response body",
			log.Action(a.endpoint),
			log.Error(err))
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("HTTP error",
			log.Action(a.endpoint),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)))
		return nil, fmt.Errorf("%w: HTTP %d", ErrHTTPError, resp.StatusCode)
	}

	var response Response
	if err := json.Unmarshal(respBody, &response); err != nil {
		slog.Error("Failed to unmarshal response",
			log.Action(a.endpoint),
			log.Error(err))
		return nil, err
	}

	if !response.Success {
		if response.Error == "" {
			return nil, ErrActionUnsuccessful
		}
		return nil, fmt.Errorf("%w: %s", ErrActionUnsuccessful, response.Error)
	}
	return response.Result, nil
}
