package bill

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Handler struct {
	service *billing.Service
}

func NewHandler(service *billing.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the bill endpoints. guard runs before every write.
func (h *Handler) RegisterRoutes(r gin.IRouter, guard ...gin.HandlerFunc) {
	bills := r.Group("/bills")
	{
		bills.GET("", h.ListBills)
		bills.GET("/:id", h.GetBill)

		writes := bills.Group("", guard...)
		writes.POST("", h.CreateBill)
		writes.PUT("/:id", h.UpdateBill)
		writes.POST("/:id/pay", h.MarkPaid)
		writes.DELETE("/:id", h.DeleteBill)
	}
}

func (h *Handler) CreateBill(c *gin.Context) {
	var req model.CreateBillRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	bill, err := h.service.CreateBill(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, bill)
}

func (h *Handler) GetBill(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	bill, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, bill)
}

func (h *Handler) ListBills(c *gin.Context) {
	var filters model.BillFilters
	var ok bool
	if filters.PatientID, ok = handler.QueryUUID(c, "patient_id"); !ok {
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := model.ParseBillStatus(raw)
		if err != nil {
			handler.Fail(c, apperrors.Validation("invalid status", map[string]string{"status": err.Error()}))
			return
		}
		filters.Status = &status
	}

	bills, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, bills)
}

func (h *Handler) UpdateBill(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateBillRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	bill, err := h.service.UpdateBill(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, bill)
}

// MarkPaid is safe to retry: a bill that is already PAID comes back unchanged.
func (h *Handler) MarkPaid(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.MarkPaidRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	bill, err := h.service.MarkPaid(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, bill)
}

func (h *Handler) DeleteBill(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.NoContent(c)
}
