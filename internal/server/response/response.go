// Package response writes the JSON envelope shared by every API endpoint.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pulsedelta/backend/internal/domain"
)

// Envelope is the body of every successful API response.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

// ErrorEnvelope is the body of every failed API response.
type ErrorEnvelope struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message"`
	Errors    []domain.FieldViolation `json:"errors,omitempty"`
	Timestamp string                  `json:"timestamp"`
}

// Pagination describes one page of a larger result set.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination derives page metadata. A limit below one is a programming
// error and panics with a *domain.ComputationError.
func NewPagination(page, limit int, total int64) Pagination {
	if limit < 1 {
		panic(&domain.ComputationError{Op: "paginate", Reason: "limit must be at least 1"})
	}
	totalPages := (total + int64(limit) - 1) / int64(limit)
	if total <= 0 {
		totalPages = 0
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    int64(page) < totalPages,
		HasPrev:    page > 1,
	}
}

var now = func() time.Time { return time.Now().UTC() }

func timestamp() string {
	return now().Format(time.RFC3339Nano)
}

// Success writes a successful envelope with data.
func Success(w http.ResponseWriter, status int, data any, message string) {
	if message == "" {
		message = "Success"
	}
	write(w, status, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: timestamp(),
	})
}

// Paginated writes a successful envelope with one page of data.
func Paginated(w http.ResponseWriter, data any, page, limit int, total int64, message string) {
	if message == "" {
		message = "Success"
	}
	p := NewPagination(page, limit, total)
	write(w, http.StatusOK, Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: &p,
		Timestamp:  timestamp(),
	})
}

// Error writes a failed envelope. violations may be nil.
func Error(w http.ResponseWriter, status int, message string, violations []domain.FieldViolation) {
	write(w, status, ErrorEnvelope{
		Success:   false,
		Message:   message,
		Errors:    violations,
		Timestamp: timestamp(),
	})
}

// write marshals env and writes it with the given status. If marshaling
// fails, it falls back to a plain 500 envelope.
func write(w http.ResponseWriter, status int, env any) {
	data, err := json.Marshal(env)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
