package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/IceBotYT/noonlight"
	"github.com/IceBotYT/noonlight/internal/endpoint"
	"github.com/IceBotYT/noonlight/internal/payload"
	"github.com/IceBotYT/noonlight/internal/transport"
	"github.com/IceBotYT/noonlight/internal/validation"
	"go.uber.org/zap"
)

// ErrDetachedAlarm is returned by an Alarm that was not made by CreateAlarm.
var ErrDetachedAlarm = errors.New("alarm handle was not created by CreateAlarm")

// Alarm is a handle to an alarm created by CreateAlarm. It keeps the token
// and base URL resolved at creation for every later call. A zero Alarm
// sends nothing and fails with ErrDetachedAlarm.
//
// Only Cancel looks at the active flag. The other operations are sent even
// after the alarm was canceled and the service decides what to do with them.
type Alarm struct {
	id      string
	ownerID string
	sandbox bool
	url     string
	token   string

	sender *transport.Sender
	logger *zap.Logger

	mu     sync.Mutex
	active bool
}

func (a *Alarm) ID() string      { return a.id }
func (a *Alarm) OwnerID() string { return a.ownerID }
func (a *Alarm) Sandbox() bool   { return a.sandbox }

// URL is the resolved base endpoint of the alarms family.
func (a *Alarm) URL() string { return a.url }

// Active reports whether the alarm has not been canceled through this handle.
func (a *Alarm) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

type cancelBody struct {
	Status string `json:"status"`
	Pin    string `json:"pin,omitempty"`
}

// Cancel marks the alarm CANCELED. An empty pin is not sent at all, so an
// empty string cannot be passed as a pin. Canceling an inactive alarm
// returns nil without a request; the flag flips only after the service
// accepted the change.
func (a *Alarm) Cancel(ctx context.Context, pin string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sender == nil {
		return ErrDetachedAlarm
	}
	if !a.active {
		a.logger.Debug("alarm already canceled")
		return nil
	}

	if _, err := a.post(ctx, http.StatusCreated, cancelBody{Status: "CANCELED", Pin: pin}, "status"); err != nil {
		return err
	}
	a.active = false
	a.logger.Info("alarm canceled")
	return nil
}

// UpdateLocation moves a dynamic alarm.
func (a *Alarm) UpdateLocation(ctx context.Context, c Coordinates) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := a.post(ctx, http.StatusCreated, c, "locations")
	return err
}

// CreateEvents reports device or person activity on the alarm.
func (a *Alarm) CreateEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return &noonlight.ValidationError{Model: "Event", Fields: []noonlight.FieldError{{Field: "events", Message: "is required"}}}
	}
	errs := make([]error, 0, len(events))
	for i, e := range events {
		errs = append(errs, validation.Prefix("events["+strconv.Itoa(i)+"]", e.Validate()))
	}
	if err := validation.Merge("Event", errs...); err != nil {
		return err
	}

	body := make([]eventPayload, len(events))
	for i, e := range events {
		body[i] = eventPayload{Type: e.Type, Time: eventTime(e, i, a.logger), Meta: e.Meta}
	}
	_, err := a.post(ctx, http.StatusCreated, body, "events")
	return err
}

// CreatePeople adds people to the alarm.
func (a *Alarm) CreatePeople(ctx context.Context, people []Person) error {
	if len(people) == 0 {
		return &noonlight.ValidationError{Model: "Person", Fields: []noonlight.FieldError{{Field: "people", Message: "is required"}}}
	}
	errs := make([]error, 0, len(people))
	for i, p := range people {
		errs = append(errs, validation.Prefix("people["+strconv.Itoa(i)+"]", p.Validate()))
	}
	if err := validation.Merge("Person", errs...); err != nil {
		return err
	}
	_, err := a.post(ctx, http.StatusCreated, people, "people")
	return err
}

// UpdatePerson changes attributes of the alarm owner. data is sent as-is.
func (a *Alarm) UpdatePerson(ctx context.Context, data map[string]any) error {
	if a.sender == nil {
		return ErrDetachedAlarm
	}
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode person update: %w", err)
	}
	_, err = a.sender.Send(ctx, transport.Request{
		Method: http.MethodPut,
		URL:    endpoint.Join(a.url, a.id, "people", a.ownerID),
		Token:  a.token,
		Body:   b,
		Expect: http.StatusOK,
	})
	return err
}

func (a *Alarm) post(ctx context.Context, expect int, body any, subpath ...string) (*transport.Response, error) {
	if a.sender == nil {
		return nil, ErrDetachedAlarm
	}
	b, err := payload.Encode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s body: %w", subpath[0], err)
	}
	return a.sender.Send(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    endpoint.Join(a.url, append([]string{a.id}, subpath...)...),
		Token:  a.token,
		Body:   b,
		Expect: expect,
	})
}
