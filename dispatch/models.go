package dispatch

import (
	"github.com/IceBotYT/noonlight/internal/validation"
)

// Address is used for static alarms, e.g. a fire or a security alarm.
type Address struct {
	Line1 string `json:"line1" yaml:"line1" validate:"required"`
	Line2 string `json:"line2,omitempty" yaml:"line2"`
	City  string `json:"city" yaml:"city" validate:"required"`
	State string `json:"state" yaml:"state" validate:"required"`
	Zip   string `json:"zip" yaml:"zip" validate:"required"`
}

func (a Address) Validate() error { return validation.Struct("Address", a) }

// Coordinates locate a dynamic alarm whose owner keeps moving. Accuracy is
// the GPS accuracy in meters.
type Coordinates struct {
	Lat      float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng      float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
	Accuracy int     `json:"accuracy" yaml:"accuracy" validate:"gte=0"`
}

func (c Coordinates) Validate() error { return validation.Struct("Coordinates", c) }

// Location of an alarm. CreateAlarm requires at least one of the two.
type Location struct {
	Address     *Address     `json:"address,omitempty" yaml:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates"`
}

func (l Location) empty() bool { return l.Address == nil && l.Coordinates == nil }

// Workflow is an optional routing id provided by Noonlight for certain use cases.
type Workflow struct {
	ID string `json:"id" yaml:"id" validate:"required"`
}

// Services are the responder types requested. Unset flags are not sent.
type Services struct {
	Police  bool `json:"police,omitempty" yaml:"police"`
	Fire    bool `json:"fire,omitempty" yaml:"fire"`
	Medical bool `json:"medical,omitempty" yaml:"medical"`
	Other   bool `json:"other,omitempty" yaml:"other"`
}

// Instructions relayed to the dispatchers. Entry is the only type.
type Instructions struct {
	Entry string `json:"entry" yaml:"entry" validate:"required"`
}

// AlarmData is the alarm creation payload.
type AlarmData struct {
	Name         string        `json:"name" yaml:"name" validate:"required"`
	Phone        string        `json:"phone" yaml:"phone" validate:"required"`
	Pin          string        `json:"pin,omitempty" yaml:"pin"`
	OwnerID      string        `json:"owner_id,omitempty" yaml:"owner_id"`
	Location     Location      `json:"location" yaml:"location"`
	Workflow     *Workflow     `json:"workflow,omitempty" yaml:"workflow"`
	Services     *Services     `json:"services,omitempty" yaml:"services"`
	Instructions *Instructions `json:"instructions,omitempty" yaml:"instructions"`
}

func (d AlarmData) Validate() error { return validation.Struct("AlarmData", d) }

// Person is someone added to an alarm. Pin lets them cancel it.
type Person struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Pin   string `json:"pin" yaml:"pin" validate:"required"`
	Phone string `json:"phone" yaml:"phone" validate:"required"`
}

func (p Person) Validate() error { return validation.Struct("Person", p) }
