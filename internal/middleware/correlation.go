package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const CorrelationHeader = "X-Correlation-Id"

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// CorrelationID keeps a caller supplied X-Correlation-Id or generates one,
// echoes it on the response and stores it in the request context.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CorrelationHeader))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(CorrelationHeader, id)
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationIDKey, id)))
	})
}

// GetCorrelationID returns the id stored by CorrelationID, or "".
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
