package detector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failed detect call. Classification is total: every
// failure maps to exactly one kind, with KindUnclassified as the fallback.
type Kind string

const (
	KindTimeout            Kind = "timeout"
	KindUnreachable        Kind = "unreachable"
	KindBadRequest         Kind = "bad_request"
	KindPayloadTooLarge    Kind = "payload_too_large"
	KindUnsupportedMedia   Kind = "unsupported_media_type"
	KindServerError        Kind = "server_error"
	KindServiceUnavailable Kind = "service_unavailable"
	KindUnclassified       Kind = "unclassified"
)

// userMessages maps each kind to the single message shown to dashboard users.
var userMessages = map[Kind]string{
	KindTimeout:            "AI processing exceeded the time limit.",
	KindUnreachable:        "Cannot reach the detection service; verify it is running.",
	KindBadRequest:         "Invalid image file or incorrect parameters.",
	KindPayloadTooLarge:    "File is too large.",
	KindUnsupportedMedia:   "Unsupported image format.",
	KindServerError:        "Internal error in the detection service.",
	KindServiceUnavailable: "Detection service temporarily unavailable.",
	KindUnclassified:       "Image analysis failed; please try again.",
}

// UserMessage returns the user-facing message for a kind.
func UserMessage(kind Kind) string {
	if msg, ok := userMessages[kind]; ok {
		return msg
	}
	return userMessages[KindUnclassified]
}

// Error is a classified detect failure. Message is safe to show to users;
// Detail carries the server's error body when one was returned.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Detail  string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("detector: %s: %v", e.Kind, e.cause)
	}
	if e.Detail != "" {
		return fmt.Sprintf("detector: %s (status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("detector: %s (status %d)", e.Kind, e.Status)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// AsError extracts a classified *Error, wrapping unknown errors as
// KindUnclassified so callers always receive a classified failure.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Kind: KindUnclassified, Message: UserMessage(KindUnclassified), cause: err}
}

// classifyStatus maps a non-2xx response status to an error kind.
func classifyStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindBadRequest
	case http.StatusRequestEntityTooLarge:
		return KindPayloadTooLarge
	case http.StatusUnsupportedMediaType:
		return KindUnsupportedMedia
	case http.StatusServiceUnavailable:
		return KindServiceUnavailable
	}
	if status >= 500 && status < 600 {
		return KindServerError
	}
	return KindUnclassified
}

// classifyTransport maps a failure that produced no response at all:
// a local timeout or a connectivity error.
func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnreachable
}

func statusError(status int, detail string) *Error {
	kind := classifyStatus(status)
	return &Error{Kind: kind, Message: UserMessage(kind), Status: status, Detail: detail}
}

func transportError(err error) *Error {
	kind := classifyTransport(err)
	return &Error{Kind: kind, Message: UserMessage(kind), cause: err}
}
