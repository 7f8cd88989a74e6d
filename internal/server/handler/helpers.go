package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/server/response"
	"github.com/pulsedelta/backend/internal/validate"
)

// Messages shared by several handlers.
const (
	msgValidation   = "Validation failed"
	msgUnauthorized = "Authentication failed"
	msgForbidden    = "Not authorized to access this resource"
	msgConflict     = "Resource already exists"
	msgUpstream     = "External API request failed"
	msgRateLimited  = "Too many requests"
	msgUnavailable  = "Service temporarily unavailable"
	msgBadJSON      = "Request body must be a JSON object"
	msgTooLarge     = "Request body too large"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
// Only endpoints outside the envelope contract use it.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// listOpts converts a validated page into store list options.
func listOpts(p validate.Page) domain.ListOpts {
	return domain.ListOpts{Limit: p.Limit, Offset: p.Offset()}
}

// errBody marks a request body that could not be decoded.
type errBody struct {
	status int
	msg    string
	err    error
}

func (e *errBody) Error() string { return e.msg + ": " + e.err.Error() }
func (e *errBody) Unwrap() error { return e.err }

// decodeBody reads a JSON object body. Numbers are kept as json.Number so
// the validators can tell integers from fractions. An empty body decodes to
// an empty map.
func decodeBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if r.Body == nil {
		return body, nil
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return map[string]any{}, nil
		case errors.As(err, &maxErr):
			return nil, &errBody{status: http.StatusRequestEntityTooLarge, msg: msgTooLarge, err: err}
		default:
			return nil, &errBody{status: http.StatusBadRequest, msg: msgBadJSON, err: err}
		}
	}
	if body == nil {
		return nil, &errBody{status: http.StatusBadRequest, msg: msgBadJSON, err: errors.New("null body")}
	}
	return body, nil
}

// writeError maps err onto the error envelope. resource names the entity
// for 404 messages; op describes the action for the generic 500 reply. Only
// unclassified failures are logged, with their full cause.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, resource, op string) {
	var (
		valErr  *domain.ValidationError
		bodyErr *errBody
	)
	switch {
	case errors.As(err, &valErr):
		response.Error(w, http.StatusBadRequest, msgValidation, valErr.Violations)
	case errors.As(err, &bodyErr):
		response.Error(w, bodyErr.status, bodyErr.msg, nil)
	case errors.Is(err, domain.ErrNotFound):
		response.Error(w, http.StatusNotFound, resource+" not found", nil)
	case errors.Is(err, domain.ErrForbidden):
		response.Error(w, http.StatusForbidden, msgForbidden, nil)
	case errors.Is(err, domain.ErrUnauthorized):
		response.Error(w, http.StatusUnauthorized, msgUnauthorized, nil)
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrAlreadyExists):
		response.Error(w, http.StatusConflict, msgConflict, nil)
	case errors.Is(err, domain.ErrRateLimited):
		response.Error(w, http.StatusTooManyRequests, msgRateLimited, nil)
	case errors.Is(err, domain.ErrServiceDisabled):
		response.Error(w, http.StatusServiceUnavailable, msgUnavailable, nil)
	case errors.Is(err, domain.ErrUpstream):
		logger.WarnContext(r.Context(), fmt.Sprintf("handler: %s failed upstream", op),
			slog.String("error", err.Error()),
		)
		response.Error(w, http.StatusBadGateway, msgUpstream, nil)
	default:
		logger.ErrorContext(r.Context(), fmt.Sprintf("handler: %s failed", op),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		response.Error(w, http.StatusInternalServerError, "failed to "+op, nil)
	}
}
