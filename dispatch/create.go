// Package dispatch creates Noonlight alarms and drives them until they are
// canceled.
package dispatch

import (
	"context"
	"errors"
	"net/http"

	"github.com/IceBotYT/noonlight"
	"github.com/IceBotYT/noonlight/internal/endpoint"
	"github.com/IceBotYT/noonlight/internal/payload"
	"github.com/IceBotYT/noonlight/internal/transport"
	"github.com/IceBotYT/noonlight/internal/validation"
	"go.uber.org/zap"
)

var (
	SandboxURL    = endpoint.Sandbox(endpoint.Alarms)
	ProductionURL = endpoint.Production(endpoint.Alarms)
)

type createResponse struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// CreateAlarm validates data, creates the alarm and returns its handle.
// Outside sandbox mode the endpoint comes from noonlight.WithProductionURL
// when set. Nothing is sent when data or the URL is invalid.
func CreateAlarm(ctx context.Context, data AlarmData, token string, sandbox bool, opts ...noonlight.Option) (*Alarm, error) {
	var locErr error
	if data.Location.empty() {
		locErr = &noonlight.ValidationError{
			Model:  "AlarmData",
			Fields: []noonlight.FieldError{{Field: "location", Message: "requires an address or coordinates"}},
		}
	}
	if err := validation.Merge("AlarmData", data.Validate(), locErr); err != nil {
		return nil, err
	}

	settings := noonlight.Apply(opts...)
	base, err := endpoint.Resolve(endpoint.Alarms, sandbox, settings.ProductionURL)
	if err != nil {
		return nil, err
	}

	body, err := payload.Encode(data)
	if err != nil {
		return nil, err
	}

	sender := transport.New(settings)
	resp, err := sender.Send(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    base,
		Token:  token,
		Body:   body,
		Expect: http.StatusCreated,
	})
	if err != nil {
		return nil, err
	}

	var created createResponse
	if err := resp.Decode(&created); err != nil || created.ID == "" {
		if err == nil {
			err = errors.New("response has no alarm id")
		}
		return nil, &noonlight.FailedRequestError{
			Method:     http.MethodPost,
			URL:        base,
			Expected:   http.StatusCreated,
			StatusCode: resp.StatusCode,
			Attempts:   resp.Attempts,
			Body:       string(resp.Body),
			Err:        err,
		}
	}

	logger := settings.Logger.With(zap.String("alarm_id", created.ID))
	logger.Info("alarm created", zap.String("owner_id", created.OwnerID), zap.Bool("sandbox", sandbox))

	return &Alarm{
		id:      created.ID,
		ownerID: created.OwnerID,
		sandbox: sandbox,
		url:     base,
		token:   token,
		sender:  sender,
		logger:  logger,
		active:  true,
	}, nil
}
