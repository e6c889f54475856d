// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package validate collects field-level configuration errors so a bad
// config reports every problem at once.
package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Error is one failed field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles the failures of one Validator run.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual failures.
func (e ValidationError) Errors() []Error {
	return e.errors
}

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Fields lists the failed field names in report order.
func (e ValidationError) Fields() []string {
	out := make([]string, 0, len(e.errors))
	for _, err := range e.errors {
		out = append(out, err.Field)
	}
	return out
}

// Validator accumulates errors. The zero value is ready to use.
type Validator struct {
	errors []Error
}

// New creates a new validator
func New() *Validator {
	return &Validator{}
}

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

// Err returns a ValidationError, or nil when nothing failed.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// URL requires an absolute URL with a host and one of schemes.
func (v *Validator) URL(field, value string, schemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), value)
		return
	}
	if u.Host == "" {
		v.AddError(field, "URL must have a host", value)
		return
	}
	if len(schemes) > 0 && !slices.Contains(schemes, u.Scheme) {
		v.AddError(field, fmt.Sprintf("unsupported URL scheme %q (allowed: %v)", u.Scheme, schemes), value)
	}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf requires value to be one of allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.AddError(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value), value)
	}
}

// NonNegative rejects n < 0.
func (v *Validator) NonNegative(field string, n int) {
	if n < 0 {
		v.AddError(field, fmt.Sprintf("value cannot be negative, got %d", n), n)
	}
}

// ListenAddr validates a host:port listen address. The host may be empty;
// port 0 is accepted and means "any free port".
func (v *Validator) ListenAddr(field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), addr)
		return
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		v.AddError(field, fmt.Sprintf("invalid port %q", port), addr)
	}
}

// PositiveDuration rejects d <= 0.
func (v *Validator) PositiveDuration(field string, d time.Duration) {
	if d <= 0 {
		v.AddError(field, fmt.Sprintf("duration must be positive, got %s", d), d)
	}
}

// Less requires a < b. otherField names b in the message.
func (v *Validator) Less(field string, a time.Duration, otherField string, b time.Duration) {
	if a >= b {
		v.AddError(field, fmt.Sprintf("must be less than %s (%s), got %s", otherField, b, a), a)
	}
}

// FloatRange requires lo <= f <= hi.
func (v *Validator) FloatRange(field string, f, lo, hi float64) {
	if f < lo || f > hi {
		v.AddError(field, fmt.Sprintf("value must be between %g and %g, got %g", lo, hi, f), f)
	}
}

// ErrInvalidLogLevel is returned by ParseLogLevel.
var ErrInvalidLogLevel = errors.New("invalid log level (must be: trace, debug, info, warn, error)")

// ParseLogLevel accepts the levels an operator may configure. zerolog's
// fatal, panic and disabled levels are not among them.
func ParseLogLevel(s string) (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" || level < zerolog.TraceLevel || level > zerolog.ErrorLevel {
		return zerolog.NoLevel, ErrInvalidLogLevel
	}
	return level, nil
}
