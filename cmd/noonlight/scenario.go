package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/IceBotYT/noonlight"
	"github.com/IceBotYT/noonlight/dispatch"
	"github.com/IceBotYT/noonlight/tasks"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// alarmScenario creates an alarm and then runs its steps in order.
type alarmScenario struct {
	Alarm dispatch.AlarmData `yaml:"alarm"`
	Steps []step             `yaml:"steps"`
}

// step holds exactly one action.
type step struct {
	Events      []eventSpec           `yaml:"events"`
	People      []dispatch.Person     `yaml:"people"`
	Location    *dispatch.Coordinates `yaml:"location"`
	UpdateOwner map[string]any        `yaml:"update_owner"`
	Cancel      *cancelSpec           `yaml:"cancel"`
}

type eventSpec struct {
	Type dispatch.EventType `yaml:"event_type"`
	Time string             `yaml:"event_time"` // empty means now
	Meta dispatch.EventMeta `yaml:"meta"`
}

type cancelSpec struct {
	Pin string `yaml:"pin"`
}

func (s step) action() (string, error) {
	var set []string
	if s.Events != nil {
		set = append(set, "events")
	}
	if s.People != nil {
		set = append(set, "people")
	}
	if s.Location != nil {
		set = append(set, "location")
	}
	if s.UpdateOwner != nil {
		set = append(set, "update_owner")
	}
	if s.Cancel != nil {
		set = append(set, "cancel")
	}
	if len(set) != 1 {
		return "", fmt.Errorf("step must have exactly one action, got %v", set)
	}
	return set[0], nil
}

func (e eventSpec) event(now time.Time) dispatch.Event {
	ev := dispatch.Event{Type: e.Type, RawTime: e.Time, Meta: e.Meta}
	if e.Time == "" {
		ev.Time = now
	}
	return ev
}

// taskFile describes one verification task. Images and Video are exclusive.
type taskFile struct {
	ID         string        `yaml:"id"`
	OwnerID    string        `yaml:"owner_id"`
	LocationID string        `yaml:"location_id"`
	DeviceID   string        `yaml:"device_id"`
	Prompt     string        `yaml:"prompt"`
	Expiration int           `yaml:"expiration"`
	WebhookURL string        `yaml:"webhook_url"`
	Images     []tasks.Image `yaml:"images"`
	Video      *tasks.Video  `yaml:"video"`
}

func (f taskFile) verificationData() (tasks.VerificationData, error) {
	d := tasks.VerificationData{
		ID:         f.ID,
		OwnerID:    f.OwnerID,
		LocationID: f.LocationID,
		DeviceID:   f.DeviceID,
		Prompt:     f.Prompt,
		Expiration: f.Expiration,
		WebhookURL: f.WebhookURL,
	}
	switch {
	case f.Video != nil && f.Images != nil:
		return d, errors.New("task cannot have both images and video")
	case f.Video != nil:
		d.Attachments = tasks.VideoAttachment(*f.Video)
	case f.Images != nil:
		for i := range f.Images {
			if f.Images[i].PointsOfInterest == nil {
				f.Images[i].PointsOfInterest = []tasks.PointOfInterest{}
			}
		}
		d.Attachments = tasks.ImageAttachments(f.Images...)
	}
	return d, nil
}

func readYAML(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

type runner struct {
	token   string
	sandbox bool
	opts    []noonlight.Option
	logger  *zap.Logger
	out     io.Writer
	now     func() time.Time
}

type alarmSummary struct {
	AlarmID string `json:"alarm_id"`
	OwnerID string `json:"owner_id"`
	Active  bool   `json:"active"`
	Steps   int    `json:"steps"`
}

func (r *runner) alarm(ctx context.Context, sc alarmScenario) error {
	actions := make([]string, len(sc.Steps))
	for i, s := range sc.Steps {
		a, err := s.action()
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		actions[i] = a
	}

	alarm, err := dispatch.CreateAlarm(ctx, sc.Alarm, r.token, r.sandbox, r.opts...)
	if err != nil {
		return err
	}

	done := 0
	for i, s := range sc.Steps {
		log := r.logger.With(zap.Int("step", i), zap.String("action", actions[i]))
		if err := r.step(ctx, alarm, s, actions[i]); err != nil {
			log.Error("step failed", zap.Error(err))
			return fmt.Errorf("step %d (%s): %w", i, actions[i], err)
		}
		log.Info("step done")
		done++
	}

	return r.print(alarmSummary{
		AlarmID: alarm.ID(),
		OwnerID: alarm.OwnerID(),
		Active:  alarm.Active(),
		Steps:   done,
	})
}

func (r *runner) step(ctx context.Context, alarm *dispatch.Alarm, s step, action string) error {
	switch action {
	case "events":
		now := r.now()
		events := make([]dispatch.Event, len(s.Events))
		for i, e := range s.Events {
			events[i] = e.event(now)
		}
		return alarm.CreateEvents(ctx, events)
	case "people":
		return alarm.CreatePeople(ctx, s.People)
	case "location":
		return alarm.UpdateLocation(ctx, *s.Location)
	case "update_owner":
		return alarm.UpdatePerson(ctx, s.UpdateOwner)
	case "cancel":
		return alarm.Cancel(ctx, s.Cancel.Pin)
	}
	return fmt.Errorf("unknown action %q", action)
}

func (r *runner) task(ctx context.Context, f taskFile) error {
	data, err := f.verificationData()
	if err != nil {
		return err
	}
	id, err := tasks.CreateTask(ctx, data, r.token, r.sandbox, r.opts...)
	if err != nil {
		return err
	}
	return r.print(map[string]string{"task_id": id})
}

func (r *runner) print(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
