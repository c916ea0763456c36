package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status    string            `json:"status"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// ErrorHandler renders the last error a handler pushed with c.Error.
// Internal errors are logged in full and answered with a generic message.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		last := c.Errors.Last().Err
		status := apperrors.HTTPStatus(last)
		if errors.Is(last, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}

		event := logger.Warn()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Err(last).
			Str("request_id", requestID).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Int("status", status).
			Msg("request failed")

		if c.Writer.Written() {
			return
		}
		c.JSON(status, renderError(last, requestID))
	}
}

func renderError(err error, requestID string) ErrorResponse {
	resp := ErrorResponse{
		Status:    "error",
		Code:      "INTERNAL_ERROR",
		Message:   "internal server error",
		RequestID: requestID,
	}
	if errors.Is(err, context.DeadlineExceeded) {
		resp.Code = "TIMEOUT"
		resp.Message = "request timeout"
		return resp
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal {
		resp.Code = appErr.Code
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	}
	return resp
}
