package lab

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/lab"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Handler struct {
	service *lab.Service
}

func NewHandler(service *lab.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	group := r.Group("/lab")
	{
		group.POST("/tests", h.CreateTest)
		group.GET("/tests", h.ListTests)

		group.POST("/orders", h.CreateOrder)
		group.GET("/orders", h.ListOrders)
		group.GET("/orders/:id", h.GetOrder)
		group.PUT("/orders/:id/status", h.UpdateOrderStatus)
		group.GET("/orders/:id/results", h.ListResults)

		group.POST("/results", h.AddResult)
	}
}

func (h *Handler) CreateTest(c *gin.Context) {
	var req model.CreateLabTestRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	test, err := h.service.CreateTest(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, test)
}

func (h *Handler) ListTests(c *gin.Context) {
	tests, err := h.service.ListTests(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, tests)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req model.CreateLabOrderRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	var filters model.LabOrderFilters
	var ok bool
	if filters.PatientID, ok = handler.QueryUUID(c, "patient_id"); !ok {
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := model.ParseLabOrderStatus(raw)
		if err != nil {
			handler.Fail(c, apperrors.Validation("invalid status", map[string]string{"status": err.Error()}))
			return
		}
		filters.Status = &status
	}

	orders, err := h.service.ListOrders(c.Request.Context(), &filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, orders)
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateLabOrderStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	order, err := h.service.UpdateOrderStatus(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, order)
}

func (h *Handler) AddResult(c *gin.Context) {
	var req model.CreateLabResultRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.service.AddResult(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, result)
}

func (h *Handler) ListResults(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	results, err := h.service.ListResults(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, results)
}
