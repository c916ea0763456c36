package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestErrorHandler(t *testing.T) {
	var logs bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(zerolog.New(&logs)))
	r.GET("/missing", func(c *gin.Context) { _ = c.Error(apperrors.NotFound("patient", "p1")) })
	r.GET("/invalid", func(c *gin.Context) {
		_ = c.Error(apperrors.Validation("request validation failed", map[string]string{"name": "is required"}))
	})
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("pq: connection reset")) })
	r.GET("/wrapped", func(c *gin.Context) { _ = c.Error(apperrors.Internal(errors.New("disk full"))) })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		path    string
		status  int
		code    string
		message string
	}{
		{"/missing", http.StatusNotFound, "NOT_FOUND", "patient not found"},
		{"/invalid", http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed"},
		{"/boom", http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
		{"/wrapped", http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set(HeaderXRequestID, "req-"+tt.path)
			w := serve(r, req)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, "req-"+tt.path, resp.RequestID)
		})
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/invalid", nil))
	assert.Equal(t, map[string]string{"name": "is required"}, decodeError(t, w).Details)

	// internal causes reach the log, never the client
	assert.Contains(t, logs.String(), "disk full")
	w = serve(r, httptest.NewRequest(http.MethodGet, "/wrapped", nil))
	assert.NotContains(t, w.Body.String(), "disk full")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

type stubAuthenticator map[string]*model.Caller

func (s stubAuthenticator) Authenticate(token string) (*model.Caller, error) {
	if caller, ok := s[token]; ok {
		return caller, nil
	}
	return nil, apperrors.Unauthorized("invalid token")
}

func TestAuthAndRequireRole(t *testing.T) {
	authn := stubAuthenticator{
		"admin-token": {UserID: uuid.New(), Role: model.RoleAdmin},
		"desk-token":  {UserID: uuid.New(), Role: model.RoleReceptionist},
	}
	r := gin.New()
	r.Use(ErrorHandler(zerolog.Nop()))
	secured := r.Group("/", Auth(authn))
	secured.GET("/me", func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, string(caller.Role))
	})
	secured.DELETE("/doctors/1", RequireRole(model.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	request := func(method, path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		return serve(r, req)
	}

	assert.Equal(t, http.StatusUnauthorized, request(http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(http.MethodGet, "/me", "Token admin-token").Code)
	assert.Equal(t, http.StatusUnauthorized, request(http.MethodGet, "/me", "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, request(http.MethodGet, "/me", "Bearer forged").Code)

	w := request(http.MethodGet, "/me", "bearer desk-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RECEPTIONIST", w.Body.String())

	w = request(http.MethodDelete, "/doctors/1", "Bearer desk-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, w).Code)
	assert.Equal(t, http.StatusNoContent, request(http.MethodDelete, "/doctors/1", "Bearer admin-token").Code)
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zerolog.Nop()))
	r.GET("/", RequireRole(model.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w := serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "abc-123", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, strings.Repeat("x", maxRequestIDLength+1))
	w = serve(r, req)
	_, err := uuid.Parse(w.Header().Get(HeaderXRequestID))
	assert.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 2})
	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	from := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, from("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, from("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1:5002"))
	assert.Equal(t, http.StatusOK, from("10.0.0.2:5000"))
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(TimeoutConfig{Duration: 20 * time.Millisecond}))
	r.GET("/slow", func(c *gin.Context) { <-c.Request.Context().Done() })
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "TIMEOUT", decodeError(t, w).Code)

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/fast", nil)).Code)
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 16, MaxHeaderSize: 256}))
	r.POST("/", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 17))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, w).Code)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 17)))
	req.ContentLength = -1
	assert.Equal(t, http.StatusBadRequest, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("X-Padding", strings.Repeat("p", 300))
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(r, req).Code)

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))).Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig("https://desk.example.com")))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := httptest.NewRequest(http.MethodOptions, "/", nil)
	preflight.Header.Set("Origin", "https://desk.example.com")
	w := serve(r, preflight)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://desk.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	denied := httptest.NewRequest(http.MethodOptions, "/", nil)
	denied.Header.Set("Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, serve(r, denied).Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	w = serve(r, other)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	cfg := DefaultCORSConfig("*")
	origin, ok := cfg.allowed("https://any.example.com")
	assert.True(t, ok)
	assert.Equal(t, "https://any.example.com", origin)

	cfg.AllowCredentials = false
	origin, _ = cfg.allowed("https://any.example.com")
	assert.Equal(t, "*", origin)
}

func TestRecoveryAndSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()), SecurityHeaders())
	r.GET("/panic", func(c *gin.Context) { panic("unexpected nil") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, w).Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := metrics.NewNop()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/patients/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/patients/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/patients/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/patients/:id", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "GET", "404")))
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Logger(zerolog.New(&buf)))
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	serve(r, httptest.NewRequest(http.MethodGet, "/bad?x=1", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/bad?x=1", entry["path"])
	assert.Equal(t, float64(http.StatusBadRequest), entry["status"])
}
