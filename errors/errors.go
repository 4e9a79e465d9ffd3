// Package errors provides the error taxonomy for location resolution.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	CodeInternal             = "INTERNAL_ERROR"
	CodeConnectivity         = "CONNECTIVITY_ERROR"
	CodeDeviceOffline        = "DEVICE_OFFLINE"
	CodeDirectoryFailure     = "DIRECTORY_FAILURE"
	CodeNotFound             = "NOT_FOUND"
	CodeGeocodingUnavailable = "GEOCODING_UNAVAILABLE"
	CodePlaceNotFound        = "PLACE_NOT_FOUND"
	CodeNoCurrentLocation    = "NO_CURRENT_LOCATION"
	CodeReadFailure          = "READ_FAILURE"
	CodeValidation           = "VALIDATION_ERROR"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches another error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Wrap wraps an error with an AppError.
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Common error constructors.

// Internal creates an internal error.
func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

// InternalWrap wraps an error as an internal error.
func InternalWrap(err error, message string) *AppError {
	return Wrap(err, CodeInternal, message)
}

// Connectivity wraps a transport failure talking to a provider.
func Connectivity(err error, provider string) *AppError {
	return Wrap(err, CodeConnectivity, fmt.Sprintf("unable to reach %s", provider))
}

// DeviceOffline creates an offline-device result. The device exists and
// the directory answered, but there was no location payload.
func DeviceOffline(device string) *AppError {
	return New(CodeDeviceOffline, fmt.Sprintf("device %s reported no location", device))
}

// DirectoryFailure wraps a device-directory refusal, typically failed
// authentication. Distinct from CONNECTIVITY: the directory answered.
func DirectoryFailure(err error) *AppError {
	return Wrap(err, CodeDirectoryFailure, "device directory rejected the request")
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// GeocodingUnavailable wraps a geocoding provider outage.
func GeocodingUnavailable(err error) *AppError {
	return Wrap(err, CodeGeocodingUnavailable, "geocoding provider unavailable")
}

// PlaceNotFound creates a place resolution failure.
func PlaceNotFound(place string) *AppError {
	return New(CodePlaceNotFound, fmt.Sprintf("no coordinates found for %q", place))
}

// NoCurrentLocation reports that the current location is unknown and was
// needed as an implicit origin.
func NoCurrentLocation() *AppError {
	return New(CodeNoCurrentLocation, "current location is not available")
}

// ReadFailure wraps a persisted-state read problem.
func ReadFailure(err error, path string) *AppError {
	return Wrap(err, CodeReadFailure, fmt.Sprintf("unable to read location record at %s", path))
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// ValidationWithDetails creates a validation error with field details.
func ValidationWithDetails(message string, details map[string]string) *AppError {
	return New(CodeValidation, message).WithDetails(details)
}

// Predicates.

// IsConnectivity checks if the error is a transport failure.
func IsConnectivity(err error) bool {
	return Code(err) == CodeConnectivity
}

// IsDeviceOffline checks if the error is an offline-device result.
func IsDeviceOffline(err error) bool {
	return Code(err) == CodeDeviceOffline
}

// IsDirectoryFailure checks if the error is a directory refusal.
func IsDirectoryFailure(err error) bool {
	return Code(err) == CodeDirectoryFailure
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return Code(err) == CodeNotFound
}

// IsGeocodingUnavailable checks if the error is a geocoder outage.
func IsGeocodingUnavailable(err error) bool {
	return Code(err) == CodeGeocodingUnavailable
}

// IsPlaceNotFound checks if the error is a place resolution failure.
func IsPlaceNotFound(err error) bool {
	return Code(err) == CodePlaceNotFound
}

// IsNoCurrentLocation checks if the error reports an unknown current location.
func IsNoCurrentLocation(err error) bool {
	return Code(err) == CodeNoCurrentLocation
}

// IsReadFailure checks if the error is a persisted-state read problem.
func IsReadFailure(err error) bool {
	return Code(err) == CodeReadFailure
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return Code(err) == CodeValidation
}

// Code returns the error code or empty string.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
