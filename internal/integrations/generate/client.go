package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"prompt-form/internal/domain"
)

const (
	defaultEndpoint = "/generate"
	maxBodyBytes    = 1 << 20
)

// HTTPStatusError captures non-2xx responses carrying a JSON body.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("generate: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// ServiceMessage is the error text the service put in the body.
func (e *HTTPStatusError) ServiceMessage() string {
	return e.Message
}

// Client posts prompts to a generation endpoint.
type Client struct {
	baseURL       string
	endpoint      string
	httpClient    *http.Client
	correlationID func() string
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The default has no timeout of its
// own; callers bound each call through the context.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithEndpoint(path string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSpace(path)
	}
}

// WithCorrelationID sets the generator for the X-Correlation-Id header.
func WithCorrelationID(fn func() string) Option {
	return func(c *Client) {
		c.correlationID = fn
	}
}

// NewClient creates a Client for the service rooted at baseURL. An empty
// baseURL leaves the endpoint relative, which is what the browser wants.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		endpoint:      defaultEndpoint,
		httpClient:    &http.Client{},
		correlationID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		return nil, errors.New("generate: http client must not be nil")
	}
	if c.endpoint == "" {
		return nil, errors.New("generate: endpoint must not be empty")
	}
	return c, nil
}

// URL returns the address requests are posted to.
func (c *Client) URL() string {
	return generateURL(c.baseURL, c.endpoint)
}

func generateURL(baseURL, endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return strings.TrimRight(baseURL, "/") + endpoint
}

// Generate posts prompt and returns the generated text. The body is decoded
// as JSON whatever the status, so application errors keep their message.
func (c *Client) Generate(ctx context.Context, prompt string) (domain.Reply, error) {
	body, err := encodeRequest(domain.GenerateRequest{Prompt: prompt})
	if err != nil {
		return domain.Reply{}, fmt.Errorf("generate: marshal request: %w", err)
	}

	url := c.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Reply{}, fmt.Errorf("generate: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.correlationID != nil {
		if id := c.correlationID(); id != "" {
			req.Header.Set("X-Correlation-Id", id)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("generate: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return domain.Reply{}, fmt.Errorf("generate: read response body: %w", err)
	}

	payload, err := domain.DecodeGenerateResponse(raw)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("generate: status %d: %w", res.StatusCode, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, ok := payload.ErrorMessage()
		if !ok {
			msg = strings.TrimSpace(fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode)))
		}
		return domain.Reply{}, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Message:    msg,
		}
	}

	text, _ := payload.Text()
	return domain.Reply{StatusCode: res.StatusCode, Text: text}, nil
}

// encodeRequest marshals like JSON.stringify: no HTML escaping, no newline.
func encodeRequest(v domain.GenerateRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
