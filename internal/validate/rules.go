// Package validate checks raw request input before it reaches services.
// Every rule reports at most one violation per field, and a Collector
// gathers the violations of all fields of a route.
package validate

import (
	"encoding/json"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pulsedelta/backend/internal/domain"
)

var addressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return addressRe.MatchString(s)
}

// Collector accumulates field violations. Only the first violation recorded
// for a field is kept.
type Collector struct {
	violations []domain.FieldViolation
}

// Add records a violation unless field already has one.
func (c *Collector) Add(field, message string, value any) {
	if c.Has(field) {
		return
	}
	c.violations = append(c.violations, domain.FieldViolation{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// Has reports whether field already failed.
func (c *Collector) Has(field string) bool {
	for _, v := range c.violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Err returns a *domain.ValidationError holding every violation, or nil.
func (c *Collector) Err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &domain.ValidationError{Violations: slices.Clone(c.violations)}
}

// Address checks that raw is a string matching the address pattern.
func (c *Collector) Address(field string, raw any, message string) string {
	s, ok := raw.(string)
	if !ok || !IsAddress(s) {
		c.Add(field, message, raw)
		return ""
	}
	return s
}

// IntRange parses an optional query value. Empty input yields def; anything
// else must be an integer within [lo, hi].
func (c *Collector) IntRange(field, raw string, def, lo, hi int, message string) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		c.Add(field, message, raw)
		return def
	}
	return n
}

// Page parses an optional page number.
func (c *Collector) Page(raw string) int {
	return c.IntRange("page", raw, 1, 1, math.MaxInt32, "Page must be a positive integer")
}

// OneOf accepts empty input as def and otherwise requires raw to be one of
// allowed.
func (c *Collector) OneOf(field, raw, def string, allowed []string, message string) string {
	if raw == "" {
		return def
	}
	if !slices.Contains(allowed, raw) {
		c.Add(field, message, raw)
		return def
	}
	return raw
}

// MaxLength trims raw and requires at most limit characters.
func (c *Collector) MaxLength(field, raw string, limit int, message string) string {
	s := strings.TrimSpace(raw)
	if utf8.RuneCountInString(s) > limit {
		c.Add(field, message, raw)
		return ""
	}
	return s
}

// Text trims raw and requires a non-empty string of lo..hi characters.
func (c *Collector) Text(field string, raw any, lo, hi int, required, length string) string {
	s, ok := raw.(string)
	if !ok {
		c.Add(field, required, raw)
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		c.Add(field, required, raw)
		return ""
	}
	if n := utf8.RuneCountInString(s); n < lo || n > hi {
		c.Add(field, length, raw)
		return ""
	}
	return s
}

// PositiveID accepts a positive integer given as a JSON number, a
// json.Number or a decimal string.
func (c *Collector) PositiveID(field string, raw any, message string) int64 {
	n, ok := toInt64(raw)
	if !ok || n < 1 {
		c.Add(field, message, raw)
		return 0
	}
	return n
}

func toInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
