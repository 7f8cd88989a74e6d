package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/server/response"
)

// Recover returns middleware that turns a handler panic into a 500
// envelope. Broken invariants raised as *domain.ComputationError are logged
// with their operation.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					slog.String("request_id", RequestIDFrom(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}
				var compErr *domain.ComputationError
				if err, ok := rec.(error); ok && errors.As(err, &compErr) {
					attrs = append(attrs, slog.String("op", compErr.Op), slog.String("error", compErr.Error()))
				} else {
					attrs = append(attrs, slog.Any("panic", rec), slog.String("stack", string(debug.Stack())))
				}
				logger.ErrorContext(r.Context(), "http: handler panic", attrs...)

				response.Error(w, http.StatusInternalServerError, "Internal server error", nil)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
