package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError captures a failed call against the Open Badge Factory API. The
// upstream HTTP status code is the error-kind discriminator: 0 means the
// request never completed (connectivity), anything else is the status the
// remote service answered with.
type APIError struct {
	UpstreamStatus int    `json:"upstream_status"`
	Detail         string `json:"detail,omitempty"`
	Err            error  `json:"-"`
}

// Upstream status sentinels beyond the regular HTTP set.
const (
	StatusConnectivity = 0
	StatusCertExpired  = 495
	StatusCertInvalid  = 496
)

func (e *APIError) Error() string {
	msg := apiMessage(e.UpstreamStatus)
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsError converts the API failure into the common typed error so handlers
// can surface it through the regular envelope.
func (e *APIError) AsError() *Error {
	return &Error{
		Code:    apiCode(e.UpstreamStatus),
		Status:  surfacedStatus(e.UpstreamStatus),
		Message: e.Error(),
		Err:     e,
	}
}

// NewAPIError builds an APIError from an upstream status and detail text.
func NewAPIError(status int, detail string) *APIError {
	return &APIError{UpstreamStatus: status, Detail: detail}
}

// WrapAPIError marks a transport-level failure (status 0).
func WrapAPIError(err error) *APIError {
	return &APIError{UpstreamStatus: StatusConnectivity, Err: err}
}

// APIStatus extracts the upstream status from an error chain. The second
// return value reports whether the error was an APIError at all.
func APIStatus(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UpstreamStatus, true
	}
	return 0, false
}

func apiCode(status int) string {
	switch {
	case status == StatusConnectivity:
		return "OBF_UNREACHABLE"
	case status == http.StatusBadRequest:
		return "OBF_BAD_REQUEST"
	case status == http.StatusForbidden:
		return "OBF_AUTH_DENIED"
	case status == http.StatusNotFound:
		return "OBF_NOT_FOUND"
	case status == http.StatusTooManyRequests:
		return "OBF_RATE_LIMITED"
	case status == StatusCertExpired:
		return "OBF_CERT_EXPIRED"
	case status == StatusCertInvalid:
		return "OBF_CERT_INVALID"
	case status >= 500:
		return "OBF_SERVER_ERROR"
	default:
		return "OBF_API_ERROR"
	}
}

func apiMessage(status int) string {
	switch {
	case status == StatusConnectivity:
		return "could not reach the badge service"
	case status == http.StatusBadRequest:
		return "badge service rejected the request parameters"
	case status == http.StatusForbidden:
		return "badge service denied access"
	case status == http.StatusNotFound:
		return "badge service resource not found"
	case status == http.StatusTooManyRequests:
		return "badge service rate limit exceeded"
	case status == StatusCertExpired:
		return "client certificate has expired"
	case status == StatusCertInvalid:
		return "client certificate was rejected"
	case status >= 500:
		return "badge service internal error"
	default:
		return fmt.Sprintf("badge service returned status %d", status)
	}
}

// surfacedStatus maps upstream statuses to what this service answers with.
// Upstream auth and server failures are not the caller's fault.
func surfacedStatus(status int) int {
	switch {
	case status == http.StatusBadRequest:
		return http.StatusBadRequest
	case status == http.StatusNotFound:
		return http.StatusNotFound
	case status == http.StatusTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
