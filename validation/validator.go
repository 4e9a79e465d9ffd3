// Package validation provides input validation utilities.
package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Use JSON tag names for error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		registerCustomValidations(validate)
	})

	return validate
}

func registerCustomValidations(v *validator.Validate) {
	// Latitude validation
	v.RegisterValidation("latitude", validateLatitude)

	// Longitude validation
	v.RegisterValidation("longitude", validateLongitude)

	// IANA-style timezone name validation (e.g. America/Chicago)
	v.RegisterValidation("tzname", validateTimezoneName)
}

// Latitude validates latitude values (-90 to 90).
func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

// Longitude validates longitude values (-180 to 180).
func validateLongitude(fl validator.FieldLevel) bool {
	lng := fl.Field().Float()
	return lng >= -180 && lng <= 180
}

// Timezone names are Area/Location with optional sub-location, plus the
// UTC/GMT shorthands.
var tznameRegex = regexp.MustCompile(`^[A-Za-z_+\-]+(/[A-Za-z0-9_+\-]+){1,2}$|^(UTC|GMT)$`)

func validateTimezoneName(fl validator.FieldLevel) bool {
	return tznameRegex.MatchString(fl.Field().String())
}

// ValidateStruct validates a struct and returns a map of field name to
// failure message, or nil when valid.
func ValidateStruct(s interface{}) map[string]string {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	details := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		details[fe.Field()] = failureMessage(fe)
	}
	return details
}

func failureMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "latitude":
		return "must be between -90 and 90"
	case "longitude":
		return "must be between -180 and 180"
	case "tzname":
		return "must be an IANA timezone name"
	case "url":
		return "must be a valid URL"
	case "min":
		return "is below the minimum of " + fe.Param()
	case "max":
		return "exceeds the maximum of " + fe.Param()
	default:
		return "failed validation: " + fe.Tag()
	}
}
