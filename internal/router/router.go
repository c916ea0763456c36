package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler/appointment"
	"github.com/jwalitptl/clinic-api/internal/handler/auth"
	"github.com/jwalitptl/clinic-api/internal/handler/bill"
	"github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/handler/lab"
	"github.com/jwalitptl/clinic-api/internal/handler/medicalrecord"
	"github.com/jwalitptl/clinic-api/internal/handler/patient"
	"github.com/jwalitptl/clinic-api/internal/handler/prescription"
	"github.com/jwalitptl/clinic-api/internal/handler/report"
	"github.com/jwalitptl/clinic-api/internal/handler/search"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Handler is anything that mounts plain routes on a group.
type Handler interface {
	RegisterRoutes(gin.IRouter)
}

// Handlers groups every endpoint set the API serves.
type Handlers struct {
	Health         *health.Handler
	Auth           *auth.Handler
	Patients       *patient.Handler
	Doctors        *doctor.Handler
	Appointments   *appointment.Handler
	Bills          *bill.Handler
	Prescriptions  *prescription.Handler
	Lab            *lab.Handler
	MedicalRecords *medicalrecord.Handler
	Search         *search.Handler
	Reports        *report.Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	MaxBodySize      int64
}

type Router struct {
	engine   *gin.Engine
	handlers Handlers
	authn    middleware.Authenticator
}

func NewRouter(
	handlers Handlers,
	authn middleware.Authenticator,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config RouterConfig,
) *Router {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if config.MaxBodySize > 0 {
		sizeLimit.MaxBodySize = config.MaxBodySize
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.Metrics(m),
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(sizeLimit),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.ErrorHandler(logger),
	)

	if config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.NotFound("route", c.Request.URL.Path))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, middleware.ErrorResponse{
			Status:    "error",
			Code:      "METHOD_NOT_ALLOWED",
			Message:   "method not allowed",
			RequestID: c.GetString(middleware.ContextRequestID),
		})
	})

	return &Router{
		engine:   engine,
		handlers: handlers,
		authn:    authn,
	}
}

// Setup mounts every route. Health endpoints stay outside /api/v1 and outside
// authentication so health checks never need a token.
func (r *Router) Setup() *gin.Engine {
	r.handlers.Health.RegisterRoutes(r.engine)

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	authn := middleware.Auth(r.authn)
	r.handlers.Auth.RegisterRoutes(api, authn)

	protected := api.Group("", authn)
	for _, h := range []Handler{
		r.handlers.Patients,
		r.handlers.Doctors,
		r.handlers.Appointments,
		r.handlers.Prescriptions,
		r.handlers.Lab,
		r.handlers.MedicalRecords,
		r.handlers.Search,
		r.handlers.Reports,
	} {
		h.RegisterRoutes(protected)
	}
	r.handlers.Bills.RegisterRoutes(protected,
		middleware.RequireRole(model.RoleAdmin, model.RoleReceptionist))

	return r.engine
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
