package detector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusBadRequest, KindBadRequest},
		{http.StatusUnprocessableEntity, KindBadRequest},
		{http.StatusRequestEntityTooLarge, KindPayloadTooLarge},
		{http.StatusUnsupportedMediaType, KindUnsupportedMedia},
		{http.StatusServiceUnavailable, KindServiceUnavailable},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
		{http.StatusGatewayTimeout, KindServerError},
		{http.StatusTeapot, KindUnclassified},
		{http.StatusNotFound, KindUnclassified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatus(tt.status), "status %d", tt.status)
	}
}

func TestClassifyStatusIsTotal(t *testing.T) {
	// Every conceivable status maps to some kind with a user message.
	for status := 100; status < 600; status++ {
		kind := classifyStatus(status)
		assert.NotEmpty(t, kind, "status %d", status)
		assert.NotEmpty(t, UserMessage(kind), "status %d", status)
	}
}

func TestClassifyTransport(t *testing.T) {
	assert.Equal(t, KindTimeout, classifyTransport(context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, classifyTransport(fmt.Errorf("do request: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindUnreachable, classifyTransport(errors.New("connection refused")))
}

func TestUserMessages(t *testing.T) {
	assert.Equal(t, "Cannot reach the detection service; verify it is running.", UserMessage(KindUnreachable))
	assert.Equal(t, "AI processing exceeded the time limit.", UserMessage(KindTimeout))
	assert.Equal(t, "File is too large.", UserMessage(KindPayloadTooLarge))
	assert.Equal(t, "Unsupported image format.", UserMessage(KindUnsupportedMedia))
	assert.Equal(t, "Invalid image file or incorrect parameters.", UserMessage(KindBadRequest))
	assert.Equal(t, "Detection service temporarily unavailable.", UserMessage(KindServiceUnavailable))
	assert.Equal(t, "Internal error in the detection service.", UserMessage(KindServerError))

	// Unknown kinds fall back to the generic message.
	assert.Equal(t, UserMessage(KindUnclassified), UserMessage(Kind("bogus")))
}

func TestAsError(t *testing.T) {
	de := statusError(http.StatusServiceUnavailable, "maintenance")
	assert.Same(t, de, AsError(de))
	assert.Same(t, de, AsError(fmt.Errorf("detect: %w", de)))

	wrapped := AsError(errors.New("something odd"))
	assert.Equal(t, KindUnclassified, wrapped.Kind)
	assert.Equal(t, "Image analysis failed; please try again.", wrapped.Message)
	assert.ErrorContains(t, wrapped, "something odd")
}

func TestErrorString(t *testing.T) {
	withDetail := statusError(http.StatusBadRequest, "missing file field")
	assert.Contains(t, withDetail.Error(), "bad_request")
	assert.Contains(t, withDetail.Error(), "missing file field")

	withCause := transportError(errors.New("dial tcp: connection refused"))
	assert.Contains(t, withCause.Error(), "unreachable")
	assert.ErrorContains(t, withCause, "connection refused")
}
