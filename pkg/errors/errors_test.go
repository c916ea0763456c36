package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("patient", 1), http.StatusNotFound},
		{"conflict", Conflict("slot taken"), http.StatusConflict},
		{"invalid state", InvalidState("bill is paid"), http.StatusConflict},
		{"invalid transition", InvalidTransition("appointment", "COMPLETED", "SCHEDULED"), http.StatusBadRequest},
		{"validation", Validation("bad amount", nil), http.StatusBadRequest},
		{"bad request", BadRequest("invalid id", nil), http.StatusBadRequest},
		{"unauthorized", Unauthorized("missing token"), http.StatusUnauthorized},
		{"forbidden", Forbidden("admins only"), http.StatusForbidden},
		{"internal", Internal(fmt.Errorf("db down")), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("book: %w", Conflict("slot taken")), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("create bill: %w", Conflict("appointment already billed"))

	assert.True(t, Is(err, ErrConflict))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, KindConflict, KindOf(err))

	var appErr *AppError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestInternalKeepsCause(t *testing.T) {
	err := Internal(context.DeadlineExceeded)

	assert.True(t, Is(err, ErrInternal))
	assert.True(t, Is(err, context.DeadlineExceeded))
	assert.Equal(t, "internal server error: context deadline exceeded", err.Error())
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "patient not found", NotFound("patient", "abc").Error())
	assert.Equal(t, "appointment cannot move from COMPLETED to SCHEDULED",
		InvalidTransition("appointment", "COMPLETED", "SCHEDULED").Error())

	nf := NotFound("doctor", 42)
	assert.Equal(t, map[string]string{"resource": "doctor", "id": "42"}, nf.Details)
}
