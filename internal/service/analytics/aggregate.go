package analytics

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// Rows with a nil field needed by an aggregate are left out of that aggregate
// only.

func StatusHistogram(facts []*model.AppointmentFact) map[string]int64 {
	out := make(map[string]int64)
	for _, f := range facts {
		if f == nil || f.Status == nil || *f.Status == "" {
			continue
		}
		out[*f.Status]++
	}
	return out
}

func DayOfWeekDistribution(facts []*model.AppointmentFact, loc *time.Location) map[string]int64 {
	out := make(map[string]int64)
	for _, f := range facts {
		if f == nil || f.AppointmentTime == nil {
			continue
		}
		out[strings.ToUpper(f.AppointmentTime.In(loc).Weekday().String())]++
	}
	return out
}

func DoctorLoad(facts []*model.AppointmentFact) map[string]int64 {
	out := make(map[string]int64)
	for _, f := range facts {
		if f == nil || f.DoctorName == nil || *f.DoctorName == "" {
			continue
		}
		out[*f.DoctorName]++
	}
	return out
}

// CountOnDay counts appointments on the calendar date of day in loc.
func CountOnDay(facts []*model.AppointmentFact, day time.Time, loc *time.Location) int64 {
	start, end := dayBounds(day, loc)
	var n int64
	for _, f := range facts {
		if f == nil || f.AppointmentTime == nil {
			continue
		}
		if !f.AppointmentTime.Before(start) && f.AppointmentTime.Before(end) {
			n++
		}
	}
	return n
}

// SumByStatus adds up amounts of bills in the given status.
func SumByStatus(bills []*model.BillFact, status model.BillStatus) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range bills {
		if b == nil || b.Status == nil || !b.Amount.Valid {
			continue
		}
		if model.BillStatus(*b.Status) == status {
			sum = sum.Add(b.Amount.Decimal)
		}
	}
	return sum
}

// MonthlyRevenue buckets PAID bills by payment date into the trailing months
// calendar months ending with the month of now, oldest first.
func MonthlyRevenue(bills []*model.BillFact, now time.Time, months int, loc *time.Location) []model.MonthlyRevenue {
	if months <= 0 {
		return []model.MonthlyRevenue{}
	}
	local := now.In(loc)
	current := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)

	series := make([]model.MonthlyRevenue, months)
	for i := range series {
		start := current.AddDate(0, i-(months-1), 0)
		series[i] = model.MonthlyRevenue{
			Month:      monthLabel(start.Month()),
			Year:       start.Year(),
			MonthStart: start,
			Revenue:    decimal.Zero,
		}
	}
	windowStart := series[0].MonthStart
	windowEnd := current.AddDate(0, 1, 0)

	for _, b := range bills {
		if b == nil || b.Status == nil || b.PaymentDate == nil || !b.Amount.Valid {
			continue
		}
		if model.BillStatus(*b.Status) != model.BillStatusPaid {
			continue
		}
		paid := b.PaymentDate.In(loc)
		if paid.Before(windowStart) || !paid.Before(windowEnd) {
			continue
		}
		idx := monthsBetween(windowStart, paid)
		series[idx].Revenue = series[idx].Revenue.Add(b.Amount.Decimal)
	}
	return series
}

func monthLabel(m time.Month) string {
	return strings.ToUpper(m.String()[:3])
}

func monthsBetween(from, t time.Time) int {
	return (t.Year()-from.Year())*12 + int(t.Month()) - int(from.Month())
}

func dayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
