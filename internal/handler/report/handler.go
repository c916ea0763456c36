package report

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/service/analytics"
)

type Handler struct {
	service *analytics.Service
}

func NewHandler(service *analytics.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/stats/dashboard", h.Dashboard)
	r.GET("/reports/analytics", h.Analytics)
}

func (h *Handler) Dashboard(c *gin.Context) {
	dashboard, err := h.service.ComputeDashboard(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, dashboard)
}

// Analytics takes ?months=N for the revenue series; 0 or absent means the
// configured default.
func (h *Handler) Analytics(c *gin.Context) {
	months, ok := handler.QueryInt(c, "months", 0)
	if !ok {
		return
	}

	snapshot, err := h.service.ComputeAnalytics(c.Request.Context(), months)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, snapshot)
}
