package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BillStatus string

const (
	BillStatusPending   BillStatus = "PENDING"
	BillStatusPaid      BillStatus = "PAID"
	BillStatusCancelled BillStatus = "CANCELLED"
)

// ParseBillStatus accepts the caller vocabularies in use. OVERDUE lands in the
// cancelled bucket.
func ParseBillStatus(s string) (BillStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING", "UNPAID":
		return BillStatusPending, nil
	case "PAID":
		return BillStatusPaid, nil
	case "CANCELLED", "CANCELED", "OVERDUE":
		return BillStatusCancelled, nil
	}
	return "", fmt.Errorf("unknown bill status %q", s)
}

func (s BillStatus) IsTerminal() bool {
	return s == BillStatusPaid || s == BillStatusCancelled
}

type Bill struct {
	Base
	PatientID     uuid.UUID       `db:"patient_id" json:"patient_id"`
	AppointmentID *uuid.UUID      `db:"appointment_id" json:"appointment_id,omitempty"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Status        BillStatus      `db:"status" json:"status"`
	IssueDate     time.Time       `db:"issue_date" json:"issue_date"`
	PaymentDate   *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	PaymentMethod *string         `db:"payment_method" json:"payment_method,omitempty"`
	Description   string          `db:"description" json:"description"`
}

// CheckPaymentInvariant reports whether payment fields agree with the status.
func (b *Bill) CheckPaymentInvariant() error {
	if b.Status == BillStatusPaid {
		if b.PaymentDate == nil {
			return fmt.Errorf("paid bill %s has no payment date", b.ID)
		}
		if b.PaymentDate.Before(b.IssueDate) {
			return fmt.Errorf("bill %s paid before it was issued", b.ID)
		}
		return nil
	}
	if b.PaymentDate != nil || b.PaymentMethod != nil {
		return fmt.Errorf("%s bill %s carries payment details", strings.ToLower(string(b.Status)), b.ID)
	}
	return nil
}

type CreateBillRequest struct {
	PatientID     uuid.UUID       `json:"patient_id" validate:"required"`
	AppointmentID *uuid.UUID      `json:"appointment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description" validate:"max=1000"`
}

type MarkPaidRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,max=50"`
}

type UpdateBillRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	Description   *string          `json:"description" validate:"omitempty,max=1000"`
	Status        *string          `json:"status"`
	PaymentMethod *string          `json:"payment_method" validate:"omitempty,max=50"`
}

type BillFilters struct {
	PatientID *uuid.UUID
	Status    *BillStatus
}
