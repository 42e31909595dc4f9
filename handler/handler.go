// Package handler adapts API Gateway proxy events to the host server's
// http.Handler.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	adapter *httpadapter.HandlerAdapter
}

func NewHandler(next http.Handler) (*Handler, error) {
	if next == nil {
		return nil, errors.New("handler: http handler must not be nil")
	}
	return &Handler{adapter: httpadapter.New(withGatewayContext(next))}, nil
}

// Handle serves the event through the wrapped handler. HTTP failures are
// reported in the response; the returned error is always nil.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp, err := h.adapter.ProxyWithContext(ctx, event)
	if err != nil {
		slog.WarnContext(ctx, "failed to translate gateway event", "err", err)
		return jsonError(http.StatusBadRequest, "Invalid request body"), nil
	}
	return normalize(resp), nil
}

// withGatewayContext takes the client address from the gateway's source IP
// and makes sure a status is always written.
func withGatewayContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gw, ok := core.GetAPIGatewayContextFromContext(r.Context()); ok && gw.Identity.SourceIP != "" {
			r.RemoteAddr = gw.Identity.SourceIP
		}
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() == 0 {
			ww.WriteHeader(http.StatusOK)
		}
	})
}

// normalize fills the single-value header map and base64-encodes bodies whose
// content type is not text, such as application/wasm.
func normalize(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string, len(resp.MultiValueHeaders))
	}
	for k, vs := range resp.MultiValueHeaders {
		if _, ok := resp.Headers[k]; !ok && len(vs) > 0 {
			resp.Headers[k] = vs[0]
		}
	}

	if !resp.IsBase64Encoded && !isText(http.Header(resp.MultiValueHeaders).Get("Content-Type")) {
		resp.Body = base64.StdEncoding.EncodeToString([]byte(resp.Body))
		resp.IsBase64Encoded = true
	}
	return resp
}

func isText(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch {
	case strings.HasSuffix(mediaType, "json"),
		strings.HasSuffix(mediaType, "xml"),
		strings.HasSuffix(mediaType, "javascript"):
		return true
	}
	return false
}

func jsonError(status int, message string) events.APIGatewayProxyResponse {
	b, _ := json.Marshal(errorResponse{Error: message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}
