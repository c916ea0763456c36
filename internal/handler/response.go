package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// DateLayout is the calendar-day format accepted in query strings.
const DateLayout = "2006-01-02"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// OK writes data wrapped in the success envelope.
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

// NoContent answers a successful delete.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail hands err to the error middleware and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParamUUID parses a path parameter. On failure the error is already recorded.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Fail(c, apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID parses an optional query parameter.
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		Fail(c, apperrors.BadRequest("invalid "+name, err))
		return nil, false
	}
	return &id, true
}

// QueryDate parses an optional YYYY-MM-DD query parameter in loc.
func QueryDate(c *gin.Context, name string, loc *time.Location) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	day, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		Fail(c, apperrors.Validation("invalid "+name,
			map[string]string{name: "must be a date in YYYY-MM-DD format"}))
		return nil, false
	}
	return &day, true
}

// QueryInt parses an optional integer query parameter, returning def when absent.
func QueryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		Fail(c, apperrors.Validation("invalid "+name,
			map[string]string{name: "must be an integer"}))
		return 0, false
	}
	return n, true
}

// BindJSON decodes the request body into obj. Field rules are checked by the
// services, so only malformed JSON fails here.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		Fail(c, apperrors.BadRequest("invalid request body", err))
		return false
	}
	return true
}
