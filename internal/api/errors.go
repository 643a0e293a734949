package api

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// ShapeErrorMessage is reported when a 2xx body matches neither the envelope nor the raw schema.
	ShapeErrorMessage = "The API returned an unexpected response shape."

	missingBaseURLRequestID = "missing-api-base-url"
	networkErrorMessage     = "Unable to reach Data Ghost API."
)

var (
	// ErrMissingBaseURL is the configuration error raised before any network call.
	ErrMissingBaseURL = errors.New("Missing DATAGHOST_API_BASE_URL environment variable.")
	// ErrInvalidRequest marks request payloads rejected before sending.
	ErrInvalidRequest = errors.New("invalid request payload")
)

// Error is the typed failure returned for every remote call.
// Status is 0 when the request never produced an HTTP response.
type Error struct {
	Message   string
	Status    int
	RequestID string
	Details   any
	Err       error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports whether the remote answered 404.
func (e *Error) NotFound() bool {
	return e != nil && e.Status == http.StatusNotFound
}

// AsError unwraps err into an *Error.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.NotFound()
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}

// RequestIDOf returns the request id carried by err, if any.
func RequestIDOf(err error) string {
	if apiErr, ok := AsError(err); ok {
		return apiErr.RequestID
	}
	return ""
}

func missingBaseURLError() *Error {
	return &Error{
		Message:   ErrMissingBaseURL.Error(),
		Status:    http.StatusInternalServerError,
		RequestID: missingBaseURLRequestID,
		Err:       ErrMissingBaseURL,
	}
}

func statusMessage(status int) string {
	return fmt.Sprintf("Request failed with status %d.", status)
}
