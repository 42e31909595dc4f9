package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"prompt-form/internal/middleware"
)

type seenRequest struct {
	method     string
	path       string
	query      string
	body       string
	remoteAddr string
	header     http.Header
}

func recordingHandler(seen *seenRequest, status int, contentType string, reply []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*seen = seenRequest{
			method:     r.Method,
			path:       r.URL.Path,
			query:      r.URL.RawQuery,
			body:       string(b),
			remoteAddr: r.RemoteAddr,
			header:     r.Header.Clone(),
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write(reply)
	})
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/generate",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	var seen seenRequest
	h, err := NewHandler(recordingHandler(&seen, http.StatusOK, "application/json", []byte(`{"result":"world"}`)))
	require.NoError(t, err)

	event := makeEvent(`{"prompt":"hello"}`)
	event.RequestContext.Identity.SourceIP = "198.51.100.7"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, resp.IsBase64Encoded)
	require.Equal(t, "world", parseBody[map[string]string](t, resp.Body)["result"])
	require.Equal(t, "application/json", resp.Headers["Content-Type"])

	require.Equal(t, http.MethodPost, seen.method)
	require.Equal(t, "/generate", seen.path)
	require.Equal(t, `{"prompt":"hello"}`, seen.body)
	require.Equal(t, "198.51.100.7", seen.remoteAddr)
}

func TestHandle_StatusPassedThrough(t *testing.T) {
	var seen seenRequest
	h, err := NewHandler(recordingHandler(&seen, http.StatusTooManyRequests, "application/json", []byte(`{"error":"Too many requests. Please try again later."}`)))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"prompt":"x"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, middleware.RateLimitedMessage, parseBody[errorResponse](t, resp.Body).Error)
}

func TestHandle_QueryAndMultiValueHeaders(t *testing.T) {
	var seen seenRequest
	h, err := NewHandler(recordingHandler(&seen, http.StatusOK, "text/plain", []byte("ok")))
	require.NoError(t, err)

	event := events.APIGatewayProxyRequest{
		HTTPMethod:                      http.MethodGet,
		Path:                            "/health",
		MultiValueHeaders:               map[string][]string{"accept": {"text/plain", "application/json"}},
		MultiValueQueryStringParameters: map[string][]string{"a": {"1", "2"}},
	}
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Body)
	require.Equal(t, "a=1&a=2", seen.query)
	require.Equal(t, []string{"text/plain", "application/json"}, seen.header.Values("Accept"))
}

func TestHandle_DecodesBase64Body(t *testing.T) {
	var seen seenRequest
	h, err := NewHandler(recordingHandler(&seen, http.StatusOK, "application/json", []byte(`{}`)))
	require.NoError(t, err)

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(`{"prompt":"encoded"}`)))
	event.IsBase64Encoded = true
	_, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, `{"prompt":"encoded"}`, seen.body)
}

func TestHandle_InvalidBase64Body(t *testing.T) {
	var seen seenRequest
	h, err := NewHandler(recordingHandler(&seen, http.StatusOK, "", nil))
	require.NoError(t, err)

	event := makeEvent("not base64!")
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Invalid request body", parseBody[errorResponse](t, resp.Body).Error)
	require.Empty(t, seen.method)
}

func TestHandle_BinaryBodyIsBase64(t *testing.T) {
	wasm := []byte("\x00asm\x01\x00\x00\x00")
	var seen seenRequest
	h, err := NewHandler(recordingHandler(&seen, http.StatusOK, "application/wasm", wasm))
	require.NoError(t, err)

	event := makeEvent("")
	event.HTTPMethod = http.MethodGet
	event.Path = "/static/main.wasm"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.True(t, resp.IsBase64Encoded)

	decoded, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wasm, decoded)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	var seen seenRequest
	h, err := NewHandler(middleware.CorrelationID(recordingHandler(&seen, http.StatusOK, "application/json", []byte(`{}`))))
	require.NoError(t, err)

	event := makeEvent(`{"prompt":"x"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestIsText(t *testing.T) {
	cases := map[string]bool{
		"":                               true,
		"text/html; charset=utf-8":       true,
		"application/json":               true,
		"application/problem+json":       true,
		"text/javascript; charset=utf-8": true,
		"application/javascript":         true,
		"image/svg+xml":                  true,
		"application/wasm":               false,
		"application/octet-stream":       false,
		"image/png":                      false,
		";;invalid":                      false,
	}
	for ct, want := range cases {
		require.Equal(t, want, isText(ct), ct)
	}
}

func TestHandle_HandlerWithoutWriteIsOK(t *testing.T) {
	h, err := NewHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Body)
}

func TestHandle_SourceIPOverridesForwardedFor(t *testing.T) {
	var seen seenRequest
	h, err := NewHandler(recordingHandler(&seen, http.StatusOK, "application/json", []byte(`{}`)))
	require.NoError(t, err)

	event := makeEvent(`{}`)
	event.Headers["X-Forwarded-For"] = "10.9.8.7"
	event.RequestContext.Identity.SourceIP = "198.51.100.7"
	_, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "198.51.100.7", seen.remoteAddr)
}
