package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var (
	ctx = context.Background()
	t0  = time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (*repository.Repositories, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewRepositories(sqlx.NewDb(db, "postgres")), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var appointmentCols = []string{"id", "patient_id", "doctor_id", "appointment_time", "status", "notes", "created_at", "updated_at"}

func appointmentRow(id uuid.UUID, status model.AppointmentStatus) *sqlmock.Rows {
	return sqlmock.NewRows(appointmentCols).
		AddRow(id.String(), uuid.NewString(), uuid.NewString(), t0, string(status), "", t0, t0)
}

func TestTranslate(t *testing.T) {
	id := uuid.New()

	assert.NoError(t, translate(nil, "op", "bill", id))
	assert.ErrorIs(t, translate(sql.ErrNoRows, "get bill", "bill", id), apperrors.ErrNotFound)
	assert.ErrorIs(t, translate(&pq.Error{Code: pqUniqueViolation}, "create", "user", id), apperrors.ErrConflict)
	assert.ErrorIs(t, translate(&pq.Error{Code: pqForeignKeyViolation}, "create", "bill", id), apperrors.ErrNotFound)

	err := translate(errors.New("connection reset"), "list bills", "bill", id)
	assert.EqualError(t, err, "failed to list bills: connection reset")
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestFilterBuilder(t *testing.T) {
	var f filterBuilder
	assert.Equal(t, "", f.where())

	f.add("patient_id = $%d", "p")
	f.add("status = $%d", "PAID")
	assert.Equal(t, " WHERE patient_id = $1 AND status = $2", f.where())
	assert.Equal(t, []interface{}{"p", "PAID"}, f.args)
}

func TestAppointmentCreate(t *testing.T) {
	repos, mock := newMock(t)
	a := &model.Appointment{Base: model.NewBase(t0), PatientID: uuid.New(), DoctorID: uuid.New(), AppointmentTime: t0, Status: model.AppointmentStatusScheduled}

	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repos.Appointments.Create(ctx, a))

	mock.ExpectExec("INSERT INTO appointments").WillReturnError(&pq.Error{Code: pqUniqueViolation})
	assert.ErrorIs(t, repos.Appointments.Create(ctx, a), apperrors.ErrConflict)

	mock.ExpectExec("INSERT INTO appointments").WillReturnError(&pq.Error{Code: pqForeignKeyViolation})
	assert.ErrorIs(t, repos.Appointments.Create(ctx, a), apperrors.ErrNotFound)
}

func TestAppointmentUpdateStatus(t *testing.T) {
	repos, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs("CONFIRMED", sqlmock.AnyArg(), id, "SCHEDULED").
		WillReturnRows(appointmentRow(id, model.AppointmentStatusConfirmed))
	a, err := repos.Appointments.UpdateStatus(ctx, id, model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, model.AppointmentStatusConfirmed, a.Status)

	mock.ExpectQuery("UPDATE appointments").WillReturnRows(sqlmock.NewRows(appointmentCols))
	_, err = repos.Appointments.UpdateStatus(ctx, id, model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrStatusMismatch)
}

func TestAppointmentUpdate(t *testing.T) {
	repos, mock := newMock(t)
	a := &model.Appointment{Base: model.NewBase(t0), AppointmentTime: t0}

	mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repos.Appointments.Update(ctx, a, model.AppointmentStatusScheduled), repository.ErrStatusMismatch)

	mock.ExpectExec("UPDATE appointments").WillReturnError(&pq.Error{Code: pqUniqueViolation})
	assert.ErrorIs(t, repos.Appointments.Update(ctx, a, model.AppointmentStatusScheduled), apperrors.ErrConflict)
}

func TestAppointmentDeleteBlockedByPaidBill(t *testing.T) {
	repos, mock := newMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM appointments WHERE id = $1 FOR UPDATE")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
	mock.ExpectQuery(q("SELECT status FROM bills WHERE appointment_id = $1 FOR UPDATE")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PAID"))
	mock.ExpectRollback()

	assert.ErrorIs(t, repos.Appointments.Delete(ctx, id), apperrors.ErrConflict)
}

func TestAppointmentDeleteCascades(t *testing.T) {
	repos, mock := newMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM appointments WHERE id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
	mock.ExpectQuery(q("SELECT status FROM bills WHERE appointment_id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))
	mock.ExpectExec(q("DELETE FROM bills WHERE appointment_id = $1")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE medical_records SET appointment_id = NULL")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("DELETE FROM appointments WHERE id = $1")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repos.Appointments.Delete(ctx, id))
}

func TestAppointmentDeleteMissing(t *testing.T) {
	repos, mock := newMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM appointments WHERE id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	assert.ErrorIs(t, repos.Appointments.Delete(ctx, id), apperrors.ErrNotFound)
}

func TestAppointmentListBuildsFilters(t *testing.T) {
	repos, mock := newMock(t)
	patientID := uuid.New()
	status := model.AppointmentStatusConfirmed
	id := uuid.New()

	mock.ExpectQuery(q("FROM appointments WHERE patient_id = $1 AND status = $2 ORDER BY appointment_time ASC")).
		WithArgs(patientID, "CONFIRMED").
		WillReturnRows(appointmentRow(id, status))

	list, err := repos.Appointments.List(ctx, &model.AppointmentFilters{PatientID: &patientID, Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestAppointmentExistsActiveAt(t *testing.T) {
	repos, mock := newMock(t)
	doctorID, exclude := uuid.New(), uuid.New()

	mock.ExpectQuery(q("AND id <> $3)")).
		WithArgs(doctorID, t0, exclude).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repos.Appointments.ExistsActiveAt(ctx, doctorID, t0, &exclude)
	require.NoError(t, err)
	assert.True(t, taken)
}

var billCols = []string{"id", "patient_id", "appointment_id", "amount", "status", "issue_date",
	"payment_date", "payment_method", "description", "created_at", "updated_at"}

func TestBillMarkPaid(t *testing.T) {
	repos, mock := newMock(t)
	id := uuid.New()
	paidAt := t0.Add(time.Hour)

	mock.ExpectQuery(q("WHERE id = $3 AND status = 'PENDING'")).
		WithArgs(paidAt, "CARD", id).
		WillReturnRows(sqlmock.NewRows(billCols).
			AddRow(id.String(), uuid.NewString(), nil, "120.50", "PAID", t0, paidAt, "CARD", "", t0, paidAt))

	bill, err := repos.Bills.MarkPaid(ctx, id, "CARD", paidAt)
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusPaid, bill.Status)
	assert.True(t, bill.Amount.Equal(decimal.RequireFromString("120.50")))
	assert.Nil(t, bill.AppointmentID)
	require.NotNil(t, bill.PaymentMethod)
	assert.Equal(t, "CARD", *bill.PaymentMethod)
	assert.NoError(t, bill.CheckPaymentInvariant())

	mock.ExpectQuery(q("WHERE id = $3 AND status = 'PENDING'")).WillReturnRows(sqlmock.NewRows(billCols))
	_, err = repos.Bills.MarkPaid(ctx, id, "CARD", paidAt)
	assert.ErrorIs(t, err, repository.ErrStatusMismatch)
}

func TestBillCreateDuplicateAppointment(t *testing.T) {
	repos, mock := newMock(t)
	appointmentID := uuid.New()
	b := &model.Bill{Base: model.NewBase(t0), PatientID: uuid.New(), AppointmentID: &appointmentID, Amount: decimal.NewFromInt(10), Status: model.BillStatusPending, IssueDate: t0}

	mock.ExpectExec("INSERT INTO bills").WillReturnError(&pq.Error{Code: pqUniqueViolation})
	assert.ErrorIs(t, repos.Bills.Create(ctx, b), apperrors.ErrConflict)
}

func TestBillDelete(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		repos, mock := newMock(t)
		id := uuid.New()
		mock.ExpectExec(q("DELETE FROM bills WHERE id = $1 AND status <> 'PAID'")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repos.Bills.Delete(ctx, id))
	})

	t.Run("paid", func(t *testing.T) {
		repos, mock := newMock(t)
		id := uuid.New()
		mock.ExpectExec("DELETE FROM bills").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("FROM bills WHERE id = $1")).
			WillReturnRows(sqlmock.NewRows(billCols).
				AddRow(id.String(), uuid.NewString(), nil, "10.00", "PAID", t0, t0, "CASH", "", t0, t0))
		assert.ErrorIs(t, repos.Bills.Delete(ctx, id), apperrors.ErrInvalidState)
	})

	t.Run("missing", func(t *testing.T) {
		repos, mock := newMock(t)
		id := uuid.New()
		mock.ExpectExec("DELETE FROM bills").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("FROM bills WHERE id = $1")).WillReturnRows(sqlmock.NewRows(billCols))
		assert.ErrorIs(t, repos.Bills.Delete(ctx, id), apperrors.ErrNotFound)
	})
}

var outboxCols = []string{"id", "event_type", "aggregate_id", "payload", "status", "error_message",
	"retry_count", "created_at", "processed_at"}

func TestOutboxProcessPending(t *testing.T) {
	repos, mock := newMock(t)
	ok, bad := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE SKIP LOCKED")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(outboxCols).
			AddRow(ok.String(), model.EventBillPaid, uuid.NewString(), []byte(`{}`), "PENDING", nil, 0, t0, nil).
			AddRow(bad.String(), model.EventBillCreated, uuid.NewString(), []byte(`{}`), "PENDING", nil, 2, t0, nil))
	mock.ExpectExec(q("SET status = 'PROCESSED'")).WithArgs(ok).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("SET status = $1, error_message = $2, retry_count = retry_count + 1")).
		WithArgs("FAILED", "publish failed", bad).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repos.Outbox.ProcessPending(ctx, 10, 3, func(_ context.Context, e *model.OutboxEvent) error {
		if e.ID == bad {
			return errors.New("publish failed")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutboxCreateValidates(t *testing.T) {
	repos, mock := newMock(t)

	assert.Error(t, repos.Outbox.Create(ctx, nil))
	assert.Error(t, repos.Outbox.Create(ctx, &model.OutboxEvent{EventType: model.EventBillPaid}))

	evt := &model.OutboxEvent{EventType: model.EventBillPaid, AggregateID: uuid.New(), Payload: []byte(`{"a":1}`)}
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repos.Outbox.Create(ctx, evt))
	assert.NotEqual(t, uuid.Nil, evt.ID)
	assert.Equal(t, model.OutboxStatusPending, evt.Status)
	assert.False(t, evt.CreatedAt.IsZero())
}

func TestReportSumBills(t *testing.T) {
	repos, mock := newMock(t)

	mock.ExpectQuery(q("SELECT COALESCE(SUM(amount), 0) FROM bills WHERE status = $1")).
		WithArgs("PAID").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("350.75"))

	sum, err := repos.Reports.SumBills(ctx, model.BillStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, "350.75", sum.StringFixed(2))
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	repos := NewRepositories(sqlx.NewDb(db, "postgres"))
	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, repos.Health.Ping(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
