// Package transport sends one JSON request, expects one status code and
// retries the whole exchange with capped exponential backoff until it gets it.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/IceBotYT/noonlight"
	"github.com/IceBotYT/noonlight/internal/logger"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

var ErrEmptyBody = errors.New("empty response body")

// Request is one logical call. Body is sent as-is with a JSON content type.
type Request struct {
	Method string
	URL    string
	Token  string
	Body   []byte
	Expect int
}

// Response is the answer that matched the expected status.
type Response struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Sender is safe for concurrent use; every Send builds its own retry state.
type Sender struct {
	session session
	policy  noonlight.RetryPolicy
	logger  *zap.Logger
}

// New builds a Sender from resolved settings. A nil HTTPClient selects a
// fresh connection per call.
func New(s noonlight.Settings) *Sender {
	l := s.Logger
	if l == nil {
		l = zap.NewNop()
	}
	policy := s.Retry
	if policy.Attempts <= 0 {
		policy = noonlight.DefaultRetryPolicy()
	}
	return &Sender{
		session: newSession(s.HTTPClient),
		policy:  policy,
		logger:  l.With(zap.String("component", "noonlight_transport")),
	}
}

// Send issues req until the expected status is observed or the attempt
// budget runs out. Any failure is a *noonlight.FailedRequestError.
func (s *Sender) Send(ctx context.Context, req Request) (*Response, error) {
	log := s.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
	)

	doer, release := s.session.acquire()
	defer release()

	attempts := 0
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: doerTransport{doer: doer}, CheckRedirect: keepRedirect}
	rc.Logger = logger.Retry(log)
	rc.RetryMax = s.policy.Attempts - 1
	rc.RetryWaitMin = s.policy.MinWait
	rc.RetryWaitMax = s.policy.MaxWait
	rc.Backoff = cappedBackoff
	rc.CheckRetry = expectStatus(req.Expect)
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, retry int) {
		attempts = retry + 1
		log.Debug("sending request", zap.Int("attempt", attempts))
	}
	rc.ResponseLogHook = func(_ retryablehttp.Logger, r *http.Response) {
		if r.StatusCode != req.Expect {
			log.Warn("unexpected status",
				zap.Int("status", r.StatusCode),
				zap.Int("expected", req.Expect),
				zap.Int("attempt", attempts),
			)
		}
	}

	client := resty.NewWithClient(&http.Client{
		Transport:     &retryablehttp.RoundTripper{Client: rc},
		CheckRedirect: keepRedirect,
	}).
		SetLogger(log.Sugar()).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	r := client.R().SetContext(ctx)
	if req.Token != "" {
		r.SetAuthToken(req.Token)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil || resp.StatusCode() != req.Expect {
		fail := &noonlight.FailedRequestError{
			Method:   req.Method,
			URL:      req.URL,
			Expected: req.Expect,
			Attempts: attempts,
			Err:      err,
		}
		if resp != nil && resp.RawResponse != nil {
			fail.StatusCode = resp.StatusCode()
			fail.Body = string(resp.Body())
		}
		log.Error("noonlight request failed",
			zap.Int("status", fail.StatusCode),
			zap.Int("expected", req.Expect),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return nil, fail
	}

	log.Debug("request succeeded",
		zap.Int("status", resp.StatusCode()),
		zap.Int("attempts", attempts),
	)
	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Attempts:   attempts,
	}, nil
}

// expectStatus retries every response whose status differs from code and
// every transport error the default policy considers recoverable.
func expectStatus(code int) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		}
		return resp.StatusCode != code, nil
	}
}

// cappedBackoff keeps Retry-After hints from exceeding max.
func cappedBackoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	d := retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
	if d > max {
		d = max
	}
	return d
}

func keepRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
