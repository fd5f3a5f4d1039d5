package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IceBotYT/noonlight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirectDoer sends every request to srv while keeping the original path,
// so the resolved noonlight.com endpoints can be served locally.
type redirectDoer struct {
	srv  *httptest.Server
	seen []*url.URL
}

func (d *redirectDoer) Do(req *http.Request) (*http.Response, error) {
	orig := *req.URL
	d.seen = append(d.seen, &orig)
	target, _ := url.Parse(d.srv.URL)
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	req.Host = target.Host
	return d.srv.Client().Do(req)
}

func fastRetry() noonlight.Option {
	return noonlight.WithRetryPolicy(noonlight.RetryPolicy{Attempts: 5, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond})
}

func videoTask() VerificationData {
	return VerificationData{
		Prompt:      "Is this a person?",
		Expiration:  30,
		Attachments: VideoAttachment(Video{URL: "https://example.com/v.mp4", MediaType: "video/mp4"}),
	}
}

const taskBody = `{
	"id": "test_task_id",
	"prompt": "test_prompt",
	"expiration": {"timeout": "30"},
	"attachments": {"url": "https://example.com/video.mp4"},
	"webhook_url": "https://example.com/webhook"
}`

func TestCreateTask_Sandbox(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, taskBody)
	}))
	defer srv.Close()

	doer := &redirectDoer{srv: srv}
	id, err := CreateTask(context.Background(), videoTask(), "some_server_token", true, noonlight.WithHTTPClient(doer), fastRetry())
	require.NoError(t, err)
	assert.Equal(t, "test_task_id", id)

	require.Len(t, doer.seen, 1)
	assert.Equal(t, SandboxURL, doer.seen[0].String())
	assert.Equal(t, "Bearer some_server_token", auth)
	assert.Equal(t, map[string]any{
		"prompt":      "Is this a person?",
		"expiration":  map[string]any{"timeout": float64(30)},
		"attachments": map[string]any{"url": "https://example.com/v.mp4", "media_type": "video/mp4"},
	}, got)
}

func TestCreate_ProductionResponse(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, taskBody)
	}))
	defer srv.Close()

	doer := &redirectDoer{srv: srv}
	task, err := Create(context.Background(), videoTask(), "token", false, noonlight.WithHTTPClient(doer), fastRetry())
	require.NoError(t, err)

	assert.Equal(t, ProductionURL, doer.seen[0].String())
	assert.Equal(t, "test_prompt", task.Prompt)
	assert.Equal(t, "https://example.com/webhook", task.WebhookURL)
	assert.JSONEq(t, `{"url": "https://example.com/video.mp4"}`, string(task.Attachments))

	timeout, err := task.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 30, timeout)
}

func TestCreateTask_ImagesPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"img_task","expiration":{"timeout":60}}`)
	}))
	defer srv.Close()

	img, err := NewImage("https://example.com/i.png", "image/png", PointOfInterest{X: 0, DX: 10, Y: 0, DY: 20})
	require.NoError(t, err)

	data := VerificationData{
		OwnerID:     "owner",
		Prompt:      "Is the door open?",
		Expiration:  60,
		Attachments: ImageAttachments(img),
		WebhookURL:  "https://example.com/hook",
	}
	id, err := CreateTask(context.Background(), data, "token", true, noonlight.WithHTTPClient(&redirectDoer{srv: srv}), fastRetry())
	require.NoError(t, err)
	assert.Equal(t, "img_task", id)

	assert.Equal(t, "owner", got["owner_id"])
	assert.Equal(t, "https://example.com/hook", got["webhook_url"])
	assert.NotContains(t, got, "id")
	assert.Equal(t, []any{map[string]any{
		"url":        "https://example.com/i.png",
		"media_type": "image/png",
		"points_of_interest": []any{
			map[string]any{"x": float64(0), "dx": float64(10), "y": float64(0), "dy": float64(20)},
		},
	}}, got["attachments"])
}

func TestCreateTask_FailedRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := CreateTask(context.Background(), videoTask(), "token", false, noonlight.WithHTTPClient(&redirectDoer{srv: srv}), fastRetry())
	var fail *noonlight.FailedRequestError
	require.True(t, errors.As(err, &fail))
	assert.Equal(t, http.StatusInternalServerError, fail.StatusCode)
	assert.EqualValues(t, 5, atomic.LoadInt32(&hits))
}

func TestCreateTask_EmptyID(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"prompt":"x"}`)
	}))
	defer srv.Close()

	_, err := CreateTask(context.Background(), videoTask(), "token", true, noonlight.WithHTTPClient(&redirectDoer{srv: srv}), fastRetry())
	var fail *noonlight.FailedRequestError
	require.True(t, errors.As(err, &fail))
	assert.Error(t, fail.Err)
}

func TestCreateTask_InvalidProductionURL(t *testing.T) {
	doer := &redirectDoer{}
	_, err := CreateTask(context.Background(), videoTask(), "token", false,
		noonlight.WithHTTPClient(doer), noonlight.WithProductionURL("http://api.noonlight.com"))

	var invalid *noonlight.InvalidURLError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, noonlight.ReasonBadScheme, invalid.Reason)
	assert.Empty(t, doer.seen)
}

func TestCreateTask_InvalidDataNotSent(t *testing.T) {
	doer := &redirectDoer{}
	_, err := CreateTask(context.Background(), VerificationData{}, "token", true, noonlight.WithHTTPClient(doer))

	var ve *noonlight.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Has("prompt"))
	assert.True(t, ve.Has("expiration"))
	assert.True(t, ve.Has("attachments"))
	assert.Empty(t, doer.seen)
}
