// Package tasks creates Noonlight verification tasks: a prompt a human
// verifier answers yes or no after looking at images or a video.
package tasks

import (
	"context"
	"errors"
	"net/http"

	"github.com/IceBotYT/noonlight"
	"github.com/IceBotYT/noonlight/internal/endpoint"
	"github.com/IceBotYT/noonlight/internal/payload"
	"github.com/IceBotYT/noonlight/internal/transport"
	"go.uber.org/zap"
)

var (
	SandboxURL    = endpoint.Sandbox(endpoint.Verifications)
	ProductionURL = endpoint.Production(endpoint.Verifications)
)

// Create validates data and creates the task, returning the service's view of it.
func Create(ctx context.Context, data VerificationData, token string, sandbox bool, opts ...noonlight.Option) (*TaskResponse, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	settings := noonlight.Apply(opts...)
	url, err := endpoint.Resolve(endpoint.Verifications, sandbox, settings.ProductionURL)
	if err != nil {
		return nil, err
	}

	body, err := payload.Encode(data.payload())
	if err != nil {
		return nil, err
	}

	resp, err := transport.New(settings).Send(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    url,
		Token:  token,
		Body:   body,
		Expect: http.StatusCreated,
	})
	if err != nil {
		return nil, err
	}

	var task TaskResponse
	if err := resp.Decode(&task); err != nil || task.ID == "" {
		if err == nil {
			err = errors.New("response has no task id")
		}
		return nil, &noonlight.FailedRequestError{
			Method:     http.MethodPost,
			URL:        url,
			Expected:   http.StatusCreated,
			StatusCode: resp.StatusCode,
			Attempts:   resp.Attempts,
			Body:       string(resp.Body),
			Err:        err,
		}
	}

	settings.Logger.Info("verification task created",
		zap.String("task_id", task.ID),
		zap.Bool("sandbox", sandbox),
	)
	return &task, nil
}

// CreateTask is Create returning only the task id.
func CreateTask(ctx context.Context, data VerificationData, token string, sandbox bool, opts ...noonlight.Option) (string, error) {
	task, err := Create(ctx, data, token, sandbox, opts...)
	if err != nil {
		return "", err
	}
	return task.ID, nil
}
