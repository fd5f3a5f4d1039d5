package noonlight

import (
	"fmt"
	"strings"
)

// FailedRequestError is returned when a request did not answer with the
// expected status code, including after the retry budget ran out.
type FailedRequestError struct {
	Method     string
	URL        string
	Expected   int
	StatusCode int // 0 when no response was received
	Attempts   int
	Body       string // last response body
	Err        error  // transport or context failure, if any
}

func (e *FailedRequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed after %d attempt(s)", e.Method, e.URL, e.Attempts)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d (expected %d)", e.StatusCode, e.Expected)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FailedRequestError) Unwrap() error { return e.Err }

// Reasons carried by InvalidURLError.
const (
	ReasonBadScheme = "Invalid or missing URL scheme (expected https)"
	ReasonBadDomain = "Invalid domain"
	ReasonMalformed = "Invalid URL"
)

// InvalidURLError is returned when a caller-supplied production URL is
// rejected. It is raised before any network I/O and never retried.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("%s: %q", e.Reason, e.URL)
}

// FieldError describes one violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError is returned when a value object fails its constraints.
type ValidationError struct {
	Model  string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("invalid %s: %s", e.Model, strings.Join(msgs, "; "))
}

// Has reports whether field is among the violations.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
