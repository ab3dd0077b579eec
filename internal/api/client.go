package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sellerchat/internal/models"
)

const (
	maxResponseBytes  = 8 << 20
	defaultTimeout    = 10 * time.Second
	requestIDHeader   = "X-Request-Id"
	authorizationName = "Authorization"
)

// Envelope is the response wrapper used by every chat REST endpoint.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a *StatusError with the given status code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == code
	}
	return false
}

type ClientConfig struct {
	// BaseURL is the backend root, e.g. "https://shop.example.com".
	BaseURL string
	// Token, when set, is sent as a bearer token.
	Token string
	// HTTPClient is used for all requests. If nil, a client with a 10s timeout is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the chat REST endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("api: BaseURL is required")
	}
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: BaseURL %q must be http or https", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// FetchRooms returns every room the backend lists for memberID, unfiltered.
func (c *Client) FetchRooms(ctx context.Context, memberID int64) ([]models.ChatRoom, error) {
	var env Envelope[[]models.ChatRoom]
	if err := c.get(ctx, "/chat/rooms/"+strconv.FormatInt(memberID, 10), &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// FetchHistory returns the stored backlog of the room identified by an
// already encoded room token. Items that fail validation are skipped.
func (c *Client) FetchHistory(ctx context.Context, encodedRoomID string) ([]models.ChatMessage, error) {
	var env Envelope[[]models.WireMessage]
	if err := c.get(ctx, "/chat/history/"+encodedRoomID, &env); err != nil {
		return nil, err
	}

	messages := make([]models.ChatMessage, 0, len(env.Data))
	for i, w := range env.Data {
		msg, err := w.ToChatMessage()
		if err != nil {
			c.logger.Warn("skipping malformed history item", "index", i, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// get builds the URL by concatenation so an encoded path segment is sent verbatim.
func (c *Client) get(ctx context.Context, path string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("api: failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	request.Header.Set("Accept", "application/json")
	request.Header.Set(requestIDHeader, requestID)
	if c.token != "" {
		request.Header.Set(authorizationName, "Bearer "+c.token)
	}

	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("api: request to GET %s failed: %w", path, err)
	}
	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("api: failed to read response body: %w", err)
	}

	c.logger.Debug("api request",
		"path", path,
		"status", response.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &StatusError{
			Method:     http.MethodGet,
			Path:       path,
			StatusCode: response.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: failed to parse response from %s: %w", path, err)
	}
	return nil
}

// AuthHeader returns the handshake headers matching the REST credentials.
func (c *Client) AuthHeader() http.Header {
	header := http.Header{}
	if c.token != "" {
		header.Set(authorizationName, "Bearer "+c.token)
	}
	return header
}
