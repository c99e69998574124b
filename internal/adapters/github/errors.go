package github

import (
	"encoding/json"
	"net/http"
	"time"

	perr "ghsnapshot/internal/platform/errors"
)

// StatusError carries the upstream HTTP status and parsed (or substitute)
// message for a non-2xx response, and optionally a rate-limit reset time.
type StatusError struct {
	Status  int
	Message string
	Reset   time.Time // zero unless Status classifies as RateLimited
	cause   *perr.Error
}

func (e *StatusError) Error() string { return e.cause.Error() }
func (e *StatusError) Unwrap() error { return e.cause }
func (e *StatusError) Code() perr.ErrorCode { return e.cause.Code() }

// HasReset reports whether an X-RateLimit-Reset accompanied the response.
func (e *StatusError) HasReset() bool { return !e.Reset.IsZero() }

// classifyStatus maps an HTTP status to the ErrorKind table in §4.3. body
// is parsed for a "message" field; unparsable bodies substitute a fixed
// message per spec.
func classifyStatus(status int, remaining int, reset time.Time, body []byte) *StatusError {
	msg := parseErrorMessage(body)
	switch status {
	case http.StatusBadRequest:
		return newStatusError(status, msg, perr.ErrorCodeBadRequest)
	case http.StatusUnauthorized:
		return newStatusError(status, msg, perr.ErrorCodeUnauthorized)
	case http.StatusForbidden:
		if remaining == 0 {
			se := newStatusError(status, msg, perr.ErrorCodeTooManyRequests)
			se.Reset = reset
			return se
		}
		return newStatusError(status, msg, perr.ErrorCodeForbidden)
	case http.StatusNotFound:
		return newStatusError(status, msg, perr.ErrorCodeNotFound)
	case http.StatusConflict:
		return newStatusError(status, msg, perr.ErrorCodeConflict)
	case http.StatusUnprocessableEntity:
		return newStatusError(status, msg, perr.ErrorCodeValidation)
	default:
		if status >= 500 {
			return newStatusError(status, msg, perr.ErrorCodeServerError)
		}
		return newStatusError(status, msg, perr.ErrorCodeGenericAPI)
	}
}

func newStatusError(status int, msg string, code perr.ErrorCode) *StatusError {
	return &StatusError{
		Status:  status,
		Message: msg,
		cause:   perr.Newf(code, "github: status %d: %s", status, msg).(*perr.Error),
	}
}

func parseErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		return "Failed to parse error response"
	}
	return payload.Message
}

// IsRateLimited reports whether err classifies as RateLimited (§4.3).
func IsRateLimited(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code() == perr.ErrorCodeTooManyRequests
}

// IsServerError reports whether err classifies as ServerError(status).
func IsServerError(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code() == perr.ErrorCodeServerError
}
