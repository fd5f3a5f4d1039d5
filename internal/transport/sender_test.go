package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IceBotYT/noonlight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fastPolicy() noonlight.RetryPolicy {
	return noonlight.RetryPolicy{Attempts: 5, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
}

// statusServer answers with statuses[i] on the i-th hit and the last entry
// afterwards.
func statusServer(t *testing.T, hits *int32, body string, statuses ...int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(hits, 1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statuses[n])
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_Success(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"abc"}`)
	}))
	defer srv.Close()

	s := New(noonlight.Apply(noonlight.WithRetryPolicy(fastPolicy())))
	resp, err := s.Send(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/alarms",
		Token:  "secret",
		Body:   []byte(`{"name":"x"}`),
		Expect: http.StatusCreated,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, resp.Attempts)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "abc", out.ID)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/alarms", got.URL.Path)
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"name":"x"}`, string(gotBody))
}

func TestSend_RetriesUntilExpected(t *testing.T) {
	var hits int32
	srv := statusServer(t, &hits, `{}`, 500, 503, 201)

	s := New(noonlight.Apply(noonlight.WithRetryPolicy(fastPolicy())))
	resp, err := s.Send(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Body: []byte(`{}`), Expect: 201})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestSend_ExhaustsAfterFiveAttempts(t *testing.T) {
	var hits int32
	srv := statusServer(t, &hits, `{"message":"boom"}`, 500)

	core, logs := observer.New(zapcore.WarnLevel)
	s := New(noonlight.Apply(
		noonlight.WithRetryPolicy(fastPolicy()),
		noonlight.WithLogger(zap.New(core)),
	))
	_, err := s.Send(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Body: []byte(`{}`), Expect: 201})

	var fail *noonlight.FailedRequestError
	require.True(t, errors.As(err, &fail))
	assert.Equal(t, 5, fail.Attempts)
	assert.Equal(t, 500, fail.StatusCode)
	assert.Equal(t, 201, fail.Expected)
	assert.Equal(t, `{"message":"boom"}`, fail.Body)
	assert.NoError(t, fail.Err)
	assert.EqualValues(t, 5, atomic.LoadInt32(&hits))

	assert.Equal(t, 5, logs.FilterMessage("unexpected status").Len())
	assert.Equal(t, 1, logs.FilterMessage("noonlight request failed").Len())
}

func TestSend_StatusMismatchOnSuccessCode(t *testing.T) {
	var hits int32
	srv := statusServer(t, &hits, `ok`, 200)

	s := New(noonlight.Apply(noonlight.WithRetryPolicy(noonlight.RetryPolicy{Attempts: 2, MinWait: time.Millisecond, MaxWait: time.Millisecond})))
	_, err := s.Send(context.Background(), Request{Method: http.MethodPut, URL: srv.URL, Expect: 201})

	var fail *noonlight.FailedRequestError
	require.True(t, errors.As(err, &fail))
	assert.Equal(t, 200, fail.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

type closeRecorder struct {
	inner  http.RoundTripper
	closed int32
	calls  int32
}

func (c *closeRecorder) RoundTrip(r *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.inner.RoundTrip(r)
}

func (c *closeRecorder) CloseIdleConnections() { atomic.AddInt32(&c.closed, 1) }

func TestSend_BorrowedSessionIsNotClosed(t *testing.T) {
	var hits int32
	srv := statusServer(t, &hits, `fail`, 500)

	rec := &closeRecorder{inner: http.DefaultTransport}
	borrowed := &http.Client{Transport: rec}

	s := New(noonlight.Apply(noonlight.WithHTTPClient(borrowed), noonlight.WithRetryPolicy(fastPolicy())))
	_, err := s.Send(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Expect: 201})
	require.Error(t, err)

	assert.EqualValues(t, 5, atomic.LoadInt32(&rec.calls))
	assert.EqualValues(t, 0, atomic.LoadInt32(&rec.closed))
}

func TestSend_OwnedAndBorrowedBehaveAlike(t *testing.T) {
	var hits int32
	srv := statusServer(t, &hits, `{"id":"1"}`, 404, 201)

	for _, opt := range []noonlight.Option{nil, noonlight.WithHTTPClient(&http.Client{})} {
		atomic.StoreInt32(&hits, 0)
		s := New(noonlight.Apply(opt, noonlight.WithRetryPolicy(fastPolicy())))
		resp, err := s.Send(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Expect: 201})
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Attempts)
		assert.Equal(t, `{"id":"1"}`, string(resp.Body))
	}
}

func TestSend_ContextCanceled(t *testing.T) {
	var hits int32
	srv := statusServer(t, &hits, ``, 500)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(noonlight.Apply(noonlight.WithRetryPolicy(fastPolicy())))
	_, err := s.Send(ctx, Request{Method: http.MethodPost, URL: srv.URL, Expect: 201})

	var fail *noonlight.FailedRequestError
	require.True(t, errors.As(err, &fail))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := New(noonlight.Apply(noonlight.WithRetryPolicy(fastPolicy())))
	_, err := s.Send(context.Background(), Request{Method: http.MethodPost, URL: url, Expect: 201})

	var fail *noonlight.FailedRequestError
	require.True(t, errors.As(err, &fail))
	assert.Error(t, fail.Err)
	assert.Equal(t, 0, fail.StatusCode)
	assert.Equal(t, 5, fail.Attempts)
}

func TestResponse_DecodeEmpty(t *testing.T) {
	var v map[string]any
	assert.ErrorIs(t, (&Response{Body: []byte("  ")}).Decode(&v), ErrEmptyBody)
	assert.Error(t, (&Response{Body: []byte("{")}).Decode(&v))
}

func TestCappedBackoff(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{strconv.Itoa(600)}},
	}
	assert.Equal(t, 10*time.Second, cappedBackoff(time.Second, 10*time.Second, 0, resp))
	assert.Equal(t, 4*time.Second, cappedBackoff(time.Second, 10*time.Second, 2, nil))
	assert.Equal(t, 10*time.Second, cappedBackoff(time.Second, 10*time.Second, 8, nil))
}
