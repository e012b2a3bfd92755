package session

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeNetworkFailure    = "NETWORK_FAILURE"
	textCodeMalformedResponse = "MALFORMED_RESPONSE"
	textCodeHTTPStatus        = "HTTP_STATUS_ERROR"
	textCodeAuthFailure       = "AUTH_FAILURE"
	textCodeValidationFailure = "VALIDATION_FAILURE"
	textCodeResolutionFailure = "RESOLUTION_FAILURE"
	textCodeUnauthorized      = "UNAUTHORIZED_REQUEST"
	textCodeInvalidTransition = "INVALID_SESSION_TRANSITION"
)

// ErrInvalidTransition is returned when the session state machine is asked
// for a move its transition table does not allow.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryOperation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

// NewNetworkFailure wraps a transport error: the request never produced a
// response. Distinct from an HTTP status error so callers can branch.
func NewNetworkFailure(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "request failed before a response arrived").
		WithTextCode(textCodeNetworkFailure)
}

// NewStatusError captures a non-2xx response with its status and raw payload.
func NewStatusError(status int, body []byte) *goerrors.Error {
	return goerrors.New(http.StatusText(status), goerrors.CategoryOperation).
		WithTextCode(textCodeHTTPStatus).
		WithCode(status).
		WithMetadata(map[string]any{
			"status": status,
			"body":   string(body),
		})
}

// NewMalformedResponse wraps a body that could not be decoded.
func NewMalformedResponse(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to decode response body").
		WithTextCode(textCodeMalformedResponse)
}

// NewAuthFailure marks a rejected login or a token response missing its
// access field. Nothing is stored when this is returned.
func NewAuthFailure(err error, msg string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, msg).
		WithTextCode(textCodeAuthFailure).
		WithCode(goerrors.CodeUnauthorized)
}

// NewValidationFailure carries backend registration errors through as-is.
func NewValidationFailure(err error, fields map[string]any) *goerrors.Error {
	e := goerrors.Wrap(err, goerrors.CategoryValidation, "registration rejected by backend").
		WithTextCode(textCodeValidationFailure).
		WithCode(goerrors.CodeBadRequest)
	if len(fields) > 0 {
		e = e.WithMetadata(fields)
	}
	return e
}

// NewResolutionFailure marks a failed current-user fetch, typically an
// invalid or expired token. The Manager decides whether to clear the store.
func NewResolutionFailure(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, "unable to resolve current user").
		WithTextCode(textCodeResolutionFailure).
		WithCode(goerrors.CodeUnauthorized)
}

// NewUnauthorizedRequest marks a 401 on an authenticated call made after the
// session was established. Consumers should route it to Manager.Invalidate.
func NewUnauthorizedRequest(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, "authenticated request rejected").
		WithTextCode(textCodeUnauthorized).
		WithCode(goerrors.CodeUnauthorized)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// IsNetworkFailure reports whether err means no response was received.
func IsNetworkFailure(err error) bool {
	return hasTextCode(err, textCodeNetworkFailure)
}

// IsAuthFailure reports whether err is a rejected login.
func IsAuthFailure(err error) bool {
	return hasTextCode(err, textCodeAuthFailure)
}

// IsValidationFailure reports whether err is a backend-rejected registration.
func IsValidationFailure(err error) bool {
	return hasTextCode(err, textCodeValidationFailure)
}

// IsResolutionFailure reports whether err is a failed current-user fetch.
func IsResolutionFailure(err error) bool {
	return hasTextCode(err, textCodeResolutionFailure)
}

// IsUnauthorizedRequest reports whether err is a post-session 401.
func IsUnauthorizedRequest(err error) bool {
	return hasTextCode(err, textCodeUnauthorized)
}

// StatusFromError extracts the HTTP status attached to a status error,
// returning 0 when err carries none.
func StatusFromError(err error) int {
	if err == nil {
		return 0
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return 0
	}
	if rich.Metadata != nil {
		if status, ok := rich.Metadata["status"].(int); ok {
			return status
		}
	}
	if rich.TextCode == textCodeHTTPStatus {
		return rich.Code
	}
	return 0
}

// ResponseBodyFromError returns the raw payload of a status error.
func ResponseBodyFromError(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ""
	}
	if rich.Metadata == nil {
		return ""
	}
	body, _ := rich.Metadata["body"].(string)
	return body
}
