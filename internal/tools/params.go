// ABOUTME: Tool parameter structs, JSON schemas and validation.
// ABOUTME: Every decoding or validation failure becomes a validation_error naming the parameter.

package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/toolerr"
)

type currentWeatherParams struct {
	City  string `json:"city" validate:"notblank"`
	Units string `json:"units"`
}

type forecastParams struct {
	City  string `json:"city" validate:"notblank"`
	Days  *int   `json:"days" validate:"omitempty,min=1,max=7"`
	Units string `json:"units"`
}

type travelAdviceParams struct {
	City  string `json:"city" validate:"notblank"`
	Day   string `json:"day"`
	Units string `json:"units"`
}

const (
	currentWeatherSchema = `{"type":"object","properties":{` +
		`"city":{"type":"string","description":"City name, e.g. Tokyo"},` +
		`"units":{"type":"string","enum":["metric","imperial"],"default":"metric"}},` +
		`"required":["city"]}`
	forecastSchema = `{"type":"object","properties":{` +
		`"city":{"type":"string","description":"City name, e.g. Tokyo"},` +
		`"days":{"type":"integer","minimum":1,"maximum":7,"default":3},` +
		`"units":{"type":"string","enum":["metric","imperial"],"default":"metric"}},` +
		`"required":["city"]}`
	travelAdviceSchema = `{"type":"object","properties":{` +
		`"city":{"type":"string","description":"City name, e.g. Tokyo"},` +
		`"day":{"type":"string","description":"today, tomorrow, or a YYYY-MM-DD date within the next 7 days","default":"today"},` +
		`"units":{"type":"string","enum":["metric","imperial"],"default":"metric"}},` +
		`"required":["city"]}`
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Must not fail: the function is valid and the tag is new.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// decodeParams unmarshals args into dst and validates it.
func decodeParams(args json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return toolerr.Invalid(typeErr.Field, "%s must be of type %s", typeErr.Field, schemaType(typeErr.Type))
		}
		return toolerr.Invalid("arguments", "arguments must be a JSON object")
	}
	if err := validate.Struct(dst); err != nil {
		return translateValidation(err)
	}
	return nil
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return toolerr.Invalid("arguments", "invalid arguments: %v", err)
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "notblank", "required":
		return toolerr.Invalid(field, "%s is required and must be a non-empty string", field)
	case "min", "max":
		return toolerr.Invalid(field, "%s must be between 1 and %d", field, forecast.MaxDays)
	default:
		return toolerr.Invalid(field, "%s is invalid", field)
	}
}

func schemaType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	}
	return t.String()
}
