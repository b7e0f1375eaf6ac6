package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/turnclock/internal/api/apierr"
	"github.com/mcoot/turnclock/internal/model"
)

// Client is an HTTP client for the API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken updates the client's token
func (c *Client) SetToken(token string) {
	c.token = token
}

// APIError is an error response from the API
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an API error
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// codeErrors maps API error codes back to the room errors they report
var codeErrors = map[string]error{
	apierr.CodeUnauthorized:        model.ErrIdentityRequired,
	apierr.CodeNotAdmin:            model.ErrNotAdmin,
	apierr.CodeNotYourTurn:         model.ErrNotPlayerTurn,
	apierr.CodeTimeUp:              model.ErrTimeUp,
	apierr.CodePlayerNotFound:      model.ErrPlayerNotFound,
	apierr.CodeRoomNotFound:        model.ErrRoomNotFound,
	apierr.CodeRoomExists:          model.ErrRoomExists,
	apierr.CodeRoomFull:            model.ErrRoomFull,
	apierr.CodeAlreadyInRoom:       model.ErrAlreadyInRoom,
	apierr.CodeNotInRoom:           model.ErrNotInRoom,
	apierr.CodeGameStarted:         model.ErrGameStarted,
	apierr.CodeGameNotStarted:      model.ErrGameNotStarted,
	apierr.CodeNoPlayers:           model.ErrNoPlayers,
	apierr.CodeInsufficientPlayers: model.ErrInsufficientPlayers,
	apierr.CodeInvalidConfig:       model.ErrInvalidConfig,
	apierr.CodeInvalidSeconds:      model.ErrInvalidSeconds,
	apierr.CodeVersionConflict:     model.ErrVersionConflict,
}

// Unwrap lets errors.Is match the room error behind a code
func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

// Do performs an HTTP request
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			errResp.Error.Status = resp.StatusCode
			return &errResp.Error
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

