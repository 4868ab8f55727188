package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to the tutor's streaming chat endpoint.
type Client struct {
	endpoint      string
	token         string
	httpClient    *http.Client
	queryEncoding bool
}

type ClientOption func(*Client)

func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithQueryEncoding sends the message and session id as query parameters
// instead of a JSON body.
func WithQueryEncoding() ClientOption {
	return func(c *Client) {
		c.queryEncoding = true
	}
}

func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{endpoint: endpoint}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}

	return c
}

type Request struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// StatusError is returned for a non-2xx response from the chat endpoint.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("non-OK HTTP status: %s", e.Status)
	}
	return fmt.Sprintf("non-OK HTTP status: %s: %s", e.Status, e.Body)
}

// Temporary reports whether retrying the same request can succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Send prepares a streamed chat request. Nothing is sent until the stream's
// events are consumed.
func (c *Client) Send(_ context.Context, request Request) *Stream {
	return &Stream{client: c, request: request}
}

func (c *Client) newHTTPRequest(ctx context.Context, request Request) (*http.Request, error) {
	var body io.Reader
	endpoint := c.endpoint
	if c.queryEncoding {
		parsed, err := url.Parse(c.endpoint)
		if err != nil {
			return nil, fmt.Errorf("error parsing endpoint: %w", err)
		}
		query := parsed.Query()
		query.Set("text", request.Text)
		if request.SessionID != "" {
			query.Set("session_id", request.SessionID)
		}
		parsed.RawQuery = query.Encode()
		endpoint = parsed.String()
	} else {
		requestBodyBytes, err := json.Marshal(request)
		if err != nil {
			return nil, fmt.Errorf("error marshalling JSON: %w", err)
		}
		body = bytes.NewReader(requestBodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/x-ndjson")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}
