package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	billHandler "github.com/jwalitptl/clinic-api/internal/handler/bill"
	doctorHandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	labHandler "github.com/jwalitptl/clinic-api/internal/handler/lab"
	medicalRecordHandler "github.com/jwalitptl/clinic-api/internal/handler/medicalrecord"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	prescriptionHandler "github.com/jwalitptl/clinic-api/internal/handler/prescription"
	reportHandler "github.com/jwalitptl/clinic-api/internal/handler/report"
	searchHandler "github.com/jwalitptl/clinic-api/internal/handler/search"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/router"
	analyticsService "github.com/jwalitptl/clinic-api/internal/service/analytics"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	labService "github.com/jwalitptl/clinic-api/internal/service/lab"
	medicalRecordService "github.com/jwalitptl/clinic-api/internal/service/medicalrecord"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	prescriptionService "github.com/jwalitptl/clinic-api/internal/service/prescription"
	searchService "github.com/jwalitptl/clinic-api/internal/service/search"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
	token  string
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos := memory.NewRepositories()
	logger := zerolog.Nop()
	m := metrics.NewNop()
	locker := lock.NewLocalLocker(lock.Options{TTL: time.Second, Wait: time.Second})
	recorder := event.NewOutboxRecorder(repos.Outbox, logger)

	jwtSvc := auth.NewJWTService(auth.Config{Secret: "test-secret", Issuer: "clinic-api", Expiry: time.Hour})
	authSvc := authService.NewService(repos.Users, jwtSvc, security.NewBcryptHasher(bcrypt.MinCost), logger)
	availabilitySvc := availability.NewService(repos.Doctors, repos.Appointments, availability.Config{
		DayStartHour: 9, SlotCount: 8, SlotMinutes: 60, Location: time.UTC,
	})
	appointmentSvc := appointmentService.NewService(repos, locker, recorder, m, logger, appointmentService.Config{Location: time.UTC})
	billingSvc := billing.NewService(repos, locker, recorder, m, logger)
	analyticsSvc := analyticsService.NewService(repos.Reports, analyticsService.Config{
		Location: time.UTC, DefaultMonths: 6, MaxMonths: 24,
	}, m, logger)

	handlers := router.Handlers{
		Health:         health.NewHandler(repos.Health, prometheus.NewRegistry(), logger),
		Auth:           authHandler.NewHandler(authSvc),
		Patients:       patientHandler.NewHandler(patientService.NewService(repos.Patients, repos.Bills, logger), appointmentSvc, billingSvc),
		Doctors:        doctorHandler.NewHandler(doctorService.NewService(repos.Doctors, repos.Appointments, logger), availabilitySvc),
		Appointments:   appointmentHandler.NewHandler(appointmentSvc, billingSvc, time.UTC),
		Bills:          billHandler.NewHandler(billingSvc),
		Prescriptions:  prescriptionHandler.NewHandler(prescriptionService.NewService(repos, 30)),
		Lab:            labHandler.NewHandler(labService.NewService(repos, logger)),
		MedicalRecords: medicalRecordHandler.NewHandler(medicalRecordService.NewService(repos)),
		Search:         searchHandler.NewHandler(searchService.NewService(repos.Patients, repos.Doctors)),
		Reports:        reportHandler.NewHandler(analyticsSvc),
	}

	return router.NewRouter(handlers, authSvc, m, logger, router.RouterConfig{
		CORSConfig:     middleware.DefaultCORSConfig("https://desk.example.com"),
		RequestTimeout: 5 * time.Second,
	}).Setup()
}

func (a *apiClient) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// call expects status and decodes the data envelope into out.
func (a *apiClient) call(method, path string, body interface{}, status int, out interface{}) {
	a.t.Helper()
	w := a.do(method, path, body)
	require.Equal(a.t, status, w.Code, w.Body.String())
	if out == nil {
		return
	}
	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(a.t, "success", env.Status)
	require.NoError(a.t, json.Unmarshal(env.Data, out))
}

func (a *apiClient) login(email, password string) {
	a.t.Helper()
	var resp model.LoginResponse
	a.call(http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: email, Password: password}, http.StatusOK, &resp)
	require.NotEmpty(a.t, resp.Token)
	a.token = resp.Token
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestHealthIsPublic(t *testing.T) {
	api := &apiClient{t: t, engine: newEngine(t)}

	api.call(http.MethodGet, "/health/live", nil, http.StatusOK, nil)
	api.call(http.MethodGet, "/health/ready", nil, http.StatusOK, nil)
	api.call(http.MethodGet, "/health/metrics", nil, http.StatusOK, nil)

	w := api.do(http.MethodGet, "/api/v1/patients", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	api := &apiClient{t: t, engine: newEngine(t)}

	w := api.do(http.MethodGet, "/api/v2/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))

	w = api.do(http.MethodPut, "/health/live", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", errorCode(t, w))
}

func TestAppointmentToPaidBill(t *testing.T) {
	engine := newEngine(t)
	desk := &apiClient{t: t, engine: engine}

	var user model.User
	desk.call(http.MethodPost, "/api/v1/auth/register", model.RegisterRequest{
		Name: "Front Desk", Email: "desk@clinic.example", Password: "s3cret-pass",
	}, http.StatusCreated, &user)
	assert.Equal(t, model.RoleReceptionist, user.Role)
	desk.login("desk@clinic.example", "s3cret-pass")

	var patient model.Patient
	desk.call(http.MethodPost, "/api/v1/patients", model.CreatePatientRequest{Name: "Meera Iyer"}, http.StatusCreated, &patient)
	var doctor model.Doctor
	desk.call(http.MethodPost, "/api/v1/doctors", model.CreateDoctorRequest{Name: "Dr. Rao", Specialization: "Cardiology"}, http.StatusCreated, &doctor)
	assert.True(t, doctor.Available)

	at := time.Now().UTC().AddDate(0, 0, 3)
	at = time.Date(at.Year(), at.Month(), at.Day(), 10, 0, 0, 0, time.UTC)
	book := model.BookAppointmentRequest{PatientID: patient.ID, DoctorID: doctor.ID, AppointmentTime: at}

	var apt model.Appointment
	desk.call(http.MethodPost, "/api/v1/appointments", book, http.StatusCreated, &apt)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)

	w := desk.do(http.MethodPost, "/api/v1/appointments", book)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))

	var slots struct {
		Slots []model.Slot `json:"slots"`
	}
	desk.call(http.MethodGet, "/api/v1/doctors/"+doctor.ID.String()+"/slots?date="+at.Format("2006-01-02"), nil, http.StatusOK, &slots)
	require.Len(t, slots.Slots, 8)
	assert.False(t, slots.Slots[1].Free)
	assert.True(t, slots.Slots[0].Free)

	aptPath := "/api/v1/appointments/" + apt.ID.String()
	w = desk.do(http.MethodPost, aptPath+"/status", model.TransitionAppointmentRequest{Status: "scheduled"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, w))
	desk.call(http.MethodPost, aptPath+"/status", model.TransitionAppointmentRequest{Status: "completed"}, http.StatusOK, &apt)
	assert.Equal(t, model.AppointmentStatusCompleted, apt.Status)

	var bill model.Bill
	desk.call(http.MethodPost, "/api/v1/bills", model.CreateBillRequest{
		PatientID: patient.ID, AppointmentID: &apt.ID, Amount: decimal.RequireFromString("250.00"), Description: "Consultation",
	}, http.StatusCreated, &bill)
	assert.Equal(t, model.BillStatusPending, bill.Status)

	billPath := "/api/v1/bills/" + bill.ID.String()
	desk.call(http.MethodPost, billPath+"/pay", model.MarkPaidRequest{PaymentMethod: "UPI"}, http.StatusOK, &bill)
	assert.Equal(t, model.BillStatusPaid, bill.Status)
	require.NotNil(t, bill.PaymentMethod)
	assert.Equal(t, "UPI", *bill.PaymentMethod)

	// paying again keeps the first payment
	desk.call(http.MethodPost, billPath+"/pay", model.MarkPaidRequest{PaymentMethod: "CASH"}, http.StatusOK, &bill)
	assert.Equal(t, "UPI", *bill.PaymentMethod)

	var byAppointment model.Bill
	desk.call(http.MethodGet, aptPath+"/bill", nil, http.StatusOK, &byAppointment)
	assert.Equal(t, bill.ID, byAppointment.ID)

	var dashboard model.Dashboard
	desk.call(http.MethodGet, "/api/v1/stats/dashboard", nil, http.StatusOK, &dashboard)
	assert.Equal(t, int64(1), dashboard.TotalPatients)
	assert.Equal(t, int64(1), dashboard.TotalDoctors)
	assert.True(t, decimal.NewFromInt(250).Equal(dashboard.TotalRevenue), dashboard.TotalRevenue.String())

	w = desk.do(http.MethodDelete, "/api/v1/patients/"+patient.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBillWritesNeedDeskRole(t *testing.T) {
	engine := newEngine(t)
	doc := &apiClient{t: t, engine: engine}

	doc.call(http.MethodPost, "/api/v1/auth/register", model.RegisterRequest{
		Name: "Dr. Rao", Email: "rao@clinic.example", Password: "s3cret-pass", Role: "doctor",
	}, http.StatusCreated, nil)
	doc.login("rao@clinic.example", "s3cret-pass")

	var me map[string]interface{}
	doc.call(http.MethodGet, "/api/v1/auth/me", nil, http.StatusOK, &me)
	assert.Equal(t, "DOCTOR", me["role"])

	w := doc.do(http.MethodPost, "/api/v1/bills", model.CreateBillRequest{PatientID: uuid.New(), Amount: decimal.NewFromInt(10)})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	w = doc.do(http.MethodGet, "/api/v1/bills", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBadInput(t *testing.T) {
	engine := newEngine(t)
	desk := &apiClient{t: t, engine: engine}
	desk.call(http.MethodPost, "/api/v1/auth/register", model.RegisterRequest{
		Name: "Desk", Email: "desk@clinic.example", Password: "s3cret-pass",
	}, http.StatusCreated, nil)
	desk.login("desk@clinic.example", "s3cret-pass")

	w := desk.do(http.MethodGet, "/api/v1/patients/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, w))

	w = desk.do(http.MethodGet, "/api/v1/appointments?from=12-05-2025", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = desk.do(http.MethodPost, "/api/v1/patients", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = desk.do(http.MethodGet, "/api/v1/reports/analytics?months=99", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
