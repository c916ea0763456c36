package doctor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
)

type Handler struct {
	service      *doctor.Service
	availability *availability.Service
	now          func() time.Time
}

func NewHandler(service *doctor.Service, availability *availability.Service) *Handler {
	return &Handler{
		service:      service,
		availability: availability,
		now:          time.Now,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	doctors := r.Group("/doctors")
	{
		doctors.POST("", h.CreateDoctor)
		doctors.GET("", h.ListDoctors)
		doctors.GET("/available", h.ListAvailable)
		doctors.GET("/:id", h.GetDoctor)
		doctors.PUT("/:id", h.UpdateDoctor)
		doctors.DELETE("/:id", h.DeleteDoctor)
		doctors.PATCH("/:id/availability", h.SetAvailability)
		doctors.GET("/:id/slots", h.GetSlots)
	}
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	d, err := h.service.CreateDoctor(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	d, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, d)
}

func (h *Handler) UpdateDoctor(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	d, err := h.service.UpdateDoctor(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, d)
}

func (h *Handler) SetAvailability(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.SetAvailabilityRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	d, err := h.service.SetAvailability(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteDoctor(c.Request.Context(), id); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.NoContent(c)
}

// ListDoctors accepts name, specialization and available=true filters.
func (h *Handler) ListDoctors(c *gin.Context) {
	filters := &model.DoctorFilters{
		Name:           c.Query("name"),
		Specialization: c.Query("specialization"),
	}
	if raw := c.Query("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err == nil {
			filters.AvailableOnly = available
		}
	}

	doctors, err := h.service.ListDoctors(c.Request.Context(), filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, doctors)
}

func (h *Handler) ListAvailable(c *gin.Context) {
	doctors, err := h.service.ListAvailable(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, doctors)
}

// GetSlots returns the hourly anchors for ?date=YYYY-MM-DD, today when omitted.
func (h *Handler) GetSlots(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	loc := h.availability.Location()
	day, ok := handler.QueryDate(c, "date", loc)
	if !ok {
		return
	}
	if day == nil {
		today := h.now().In(loc)
		day = &today
	}

	slots, err := h.availability.GetSlots(c.Request.Context(), id, *day)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, gin.H{
		"doctor_id": id,
		"date":      day.Format(handler.DateLayout),
		"slots":     slots,
	})
}
