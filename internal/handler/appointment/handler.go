package appointment

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Handler struct {
	service *appointment.Service
	bills   *billing.Service
	loc     *time.Location
}

// NewHandler wires the appointment endpoints. loc is the clinic timezone used
// for the from/to date filters.
func NewHandler(service *appointment.Service, bills *billing.Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, bills: bills, loc: loc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.BookAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/today/count", h.CountToday)
		appointments.GET("/pending/count", h.CountPending)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id", h.UpdateNotes)
		appointments.DELETE("/:id", h.DeleteAppointment)
		appointments.POST("/:id/reschedule", h.Reschedule)
		appointments.POST("/:id/status", h.TransitionStatus)
		appointments.POST("/:id/cancel", h.Cancel)
		appointments.GET("/:id/bill", h.GetBill)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req model.BookAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Book(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, apt)
}

// ListAppointments filters by patient_id, doctor_id, status and an inclusive
// from/to day range given as YYYY-MM-DD.
func (h *Handler) ListAppointments(c *gin.Context) {
	filters, ok := h.parseFilters(c)
	if !ok {
		return
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, appointments)
}

func (h *Handler) parseFilters(c *gin.Context) (*model.AppointmentFilters, bool) {
	var filters model.AppointmentFilters
	var ok bool

	if filters.PatientID, ok = handler.QueryUUID(c, "patient_id"); !ok {
		return nil, false
	}
	if filters.DoctorID, ok = handler.QueryUUID(c, "doctor_id"); !ok {
		return nil, false
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := model.ParseAppointmentStatus(raw)
		if err != nil {
			handler.Fail(c, apperrors.Validation("invalid status", map[string]string{"status": err.Error()}))
			return nil, false
		}
		filters.Status = &status
	}

	from, ok := handler.QueryDate(c, "from", h.loc)
	if !ok {
		return nil, false
	}
	to, ok := handler.QueryDate(c, "to", h.loc)
	if !ok {
		return nil, false
	}
	if from != nil {
		f := from.UTC()
		filters.From = &f
	}
	if to != nil {
		t := to.AddDate(0, 0, 1).UTC()
		filters.To = &t
	}
	return &filters, true
}

func (h *Handler) UpdateNotes(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.UpdateNotes(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, apt)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.RescheduleAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, apt)
}

func (h *Handler) TransitionStatus(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.TransitionAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.TransitionStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, apt)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, apt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
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

func (h *Handler) GetBill(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	bill, err := h.bills.GetByAppointment(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, bill)
}

func (h *Handler) CountToday(c *gin.Context) {
	n, err := h.service.CountToday(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, gin.H{"count": n})
}

func (h *Handler) CountPending(c *gin.Context) {
	n, err := h.service.CountPending(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, gin.H{"count": n})
}
