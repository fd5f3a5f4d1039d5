// Package validation wraps the validator engine shared by the value objects
// and reports failures as *noonlight.ValidationError.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/IceBotYT/noonlight"
	"github.com/go-playground/validator/v10"
)

var (
	once   sync.Once
	engine *validator.Validate
)

// Engine returns the process-wide validator. Field names are taken from the
// json tags so errors match the wire payload.
func Engine() *validator.Validate {
	once.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		engine.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = engine.RegisterValidation("hosturl", hostURL)
	})
	return engine
}

// hostURL accepts absolute URLs with both a scheme and a host. Opaque forms
// such as mailto: or urn: are rejected.
func hostURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != "" && u.Opaque == ""
}

// RegisterStruct adds a cross-field rule for the given types. Call it from init.
func RegisterStruct(fn validator.StructLevelFunc, types ...any) {
	Engine().RegisterStructValidation(fn, types...)
}

// Struct validates s and returns a *noonlight.ValidationError naming every
// violated field, or nil.
func Struct(model string, s any) error {
	err := Engine().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &noonlight.ValidationError{
			Model:  model,
			Fields: []noonlight.FieldError{{Field: model, Message: err.Error()}},
		}
	}
	out := &noonlight.ValidationError{Model: model}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, noonlight.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: Message(fe.Tag(), fe.Param()),
		})
	}
	return out
}

// Merge concatenates the fields of several validation errors under model.
// Non-validation errors are returned as they are.
func Merge(model string, errs ...error) error {
	out := &noonlight.ValidationError{Model: model}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ve *noonlight.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		out.Fields = append(out.Fields, ve.Fields...)
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return out
}

// Prefix rewrites every field of a validation error as prefix.field.
func Prefix(prefix string, err error) error {
	var ve *noonlight.ValidationError
	if err == nil || !errors.As(err, &ve) {
		return err
	}
	out := &noonlight.ValidationError{Model: ve.Model}
	for _, f := range ve.Fields {
		out.Fields = append(out.Fields, noonlight.FieldError{Field: prefix + "." + f.Field, Message: f.Message})
	}
	return out
}

// OneOf renders an allowed set the way error messages quote it.
func OneOf(allowed []string) string {
	quoted := make([]string, len(allowed))
	for i, a := range allowed {
		quoted[i] = "'" + a + "'"
	}
	return strings.Join(quoted, ", ")
}

// Message renders a validator tag and its parameter as text.
func Message(tag, param string) string {
	switch tag {
	case "required", "required_without":
		return "is required"
	case "oneof":
		return "must be one of " + OneOf(strings.Fields(param))
	case "allowed":
		return "must be one of " + param
	case "url", "http_url", "hosturl":
		return "must be a valid URL"
	case "min", "gte":
		if param == "0" {
			return "must be non-negative"
		}
		return fmt.Sprintf("must be at least %s", param)
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", param)
	case "gt":
		return fmt.Sprintf("must be greater than %s", param)
	case "excluded_unless":
		return fmt.Sprintf("cannot be used when %s", param)
	}
	if param != "" {
		return fmt.Sprintf("failed %s=%s", tag, param)
	}
	return "failed " + tag
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
