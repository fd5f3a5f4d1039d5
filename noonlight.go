// Package noonlight holds what the dispatch and tasks clients share: the
// error taxonomy, the session interface and request options.
package noonlight

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Doer performs a single HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryPolicy bounds the attempts made for one request and the exponential
// wait between them.
type RetryPolicy struct {
	Attempts int
	MinWait  time.Duration
	MaxWait  time.Duration
}

// DefaultRetryPolicy is five attempts waiting 1s, 2s, 4s, 8s, capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 5,
		MinWait:  1 * time.Second,
		MaxWait:  10 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.MinWait <= 0 {
		p.MinWait = def.MinWait
	}
	if p.MaxWait <= 0 {
		p.MaxWait = def.MaxWait
	}
	if p.MaxWait < p.MinWait {
		p.MaxWait = p.MinWait
	}
	return p
}

// Settings is the resolved form of a set of Options.
type Settings struct {
	HTTPClient    Doer // nil means a fresh connection per call
	ProductionURL string
	Logger        *zap.Logger
	Retry         RetryPolicy
}

// Option configures a call to CreateAlarm or CreateTask.
type Option func(*Settings)

// WithHTTPClient borrows a caller-managed session. It is never closed.
func WithHTTPClient(d Doer) Option {
	return func(s *Settings) { s.HTTPClient = d }
}

// WithProductionURL sets the base URL used when sandbox mode is off. Only the
// host is kept; it must be https and under noonlight.com.
func WithProductionURL(u string) Option {
	return func(s *Settings) { s.ProductionURL = u }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Settings) { s.Logger = l }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Settings) { s.Retry = p }
}

// Apply resolves opts over the defaults.
func Apply(opts ...Option) Settings {
	s := Settings{Retry: DefaultRetryPolicy()}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	s.Retry = s.Retry.normalized()
	return s
}
