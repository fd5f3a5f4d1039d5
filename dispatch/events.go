package dispatch

import (
	"slices"
	"strings"
	"time"

	"github.com/IceBotYT/noonlight/internal/validation"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// EventType names what happened during an alarm.
type EventType string

const (
	DeviceActivatedAlarm EventType = "alarm.device.activated_alarm"
	PersonActivatedAlarm EventType = "alarm.person.activated_alarm"
	DeviceValueChanged   EventType = "alarm.device.value_changed"
)

// Attribute is the kind of signal a device reports.
type Attribute string

const (
	AttributeSmoke             Attribute = "smoke"
	AttributeCamera            Attribute = "camera"
	AttributeLock              Attribute = "lock"
	AttributeContact           Attribute = "contact"
	AttributeMotion            Attribute = "motion"
	AttributeNetworkConnection Attribute = "network_connection"
	AttributeWaterLeak         Attribute = "water_leak"
	AttributeFreeze            Attribute = "freeze"
)

// AttributeValues lists the values each attribute accepts.
var AttributeValues = map[Attribute][]string{
	AttributeSmoke:             {"detected", "clear"},
	AttributeCamera:            {"unknown"},
	AttributeLock:              {"locked", "unlocked", "door_open", "door_closed"},
	AttributeContact:           {"open", "closed"},
	AttributeMotion:            {"detected", "cleared"},
	AttributeWaterLeak:         {"detected", "cleared"},
	AttributeFreeze:            {"detected", "cleared"},
	AttributeNetworkConnection: {"lost", "established"},
}

// EventMeta is the device detail of an event. Value must belong to the set
// allowed for Attribute, and Media is only allowed for cameras.
type EventMeta struct {
	Attribute          Attribute `json:"attribute" yaml:"attribute" validate:"required,oneof=smoke camera lock contact motion network_connection water_leak freeze"`
	Value              string    `json:"value" yaml:"value"`
	DeviceID           string    `json:"device_id,omitempty" yaml:"device_id"`
	DeviceModel        string    `json:"device_model" yaml:"device_model" validate:"required"`
	DeviceName         string    `json:"device_name" yaml:"device_name" validate:"required"`
	DeviceManufacturer string    `json:"device_manufacturer" yaml:"device_manufacturer" validate:"required"`
	Media              string    `json:"media,omitempty" yaml:"media"`
}

func (m EventMeta) Validate() error { return validation.Struct("EventMeta", m) }

// Event is something that started the alarm or happened during it. Time
// wins over RawTime; RawTime is a preformatted timestamp and, when it has no
// offset, is read in the local zone.
type Event struct {
	Type    EventType `json:"event_type" validate:"required,oneof=alarm.device.activated_alarm alarm.person.activated_alarm alarm.device.value_changed"`
	Time    time.Time `json:"-"`
	RawTime string    `json:"-"`
	Meta    EventMeta `json:"meta"`
}

// NewEvent builds and validates an event at t.
func NewEvent(typ EventType, t time.Time, meta EventMeta) (Event, error) {
	e := Event{Type: typ, Time: t, Meta: meta}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (e Event) Validate() error { return validation.Struct("Event", e) }

func init() {
	validation.RegisterStruct(eventMetaRules, EventMeta{})
	validation.RegisterStruct(eventRules, Event{})
}

func eventMetaRules(sl validator.StructLevel) {
	m := sl.Current().Interface().(EventMeta)
	if m.Media != "" && m.Attribute != AttributeCamera {
		sl.ReportError(m.Media, "media", "Media", "excluded_unless", "attribute is not 'camera'")
	}
	// An unknown attribute is reported by its own tag; Value is then unconstrained.
	if allowed, ok := AttributeValues[m.Attribute]; ok && !slices.Contains(allowed, m.Value) {
		sl.ReportError(m.Value, "value", "Value", "allowed", validation.OneOf(allowed))
	}
}

func eventRules(sl validator.StructLevel) {
	e := sl.Current().Interface().(Event)
	if e.Time.IsZero() && strings.TrimSpace(e.RawTime) == "" {
		sl.ReportError(e.RawTime, "event_time", "Time", "required", "")
	}
}

const (
	eventTimeLayout      = "2006-01-02T15:04:05-07:00"
	eventTimeMicroLayout = "2006-01-02T15:04:05.000000-07:00"
)

var (
	zonedLayouts = []string{time.RFC3339, "2006-01-02 15:04:05Z07:00"}
	naiveLayouts = []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"}
)

func formatEventTime(t time.Time) string {
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format(eventTimeMicroLayout)
	}
	return t.Format(eventTimeLayout)
}

// eventTime renders the timestamp sent for e. A raw value without an offset
// is annotated with the local zone and reported through logger.
func eventTime(e Event, index int, logger *zap.Logger) string {
	if !e.Time.IsZero() {
		return formatEventTime(e.Time)
	}
	raw := strings.TrimSpace(e.RawTime)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return formatEventTime(t)
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			zone, _ := t.Zone()
			logger.Warn("event time has no zone, assuming local time",
				zap.Int("event", index),
				zap.String("event_time", raw),
				zap.String("zone", zone),
			)
			return formatEventTime(t)
		}
	}
	logger.Debug("sending unparsed event time", zap.Int("event", index), zap.String("event_time", raw))
	return strings.Replace(raw, " ", "T", 1)
}

type eventPayload struct {
	Type EventType `json:"event_type"`
	Time string    `json:"event_time"`
	Meta EventMeta `json:"meta"`
}
