package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LabTest struct {
	Base
	Code        string          `db:"code" json:"code"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	NormalRange string          `db:"normal_range" json:"normal_range"`
	Units       string          `db:"units" json:"units"`
	Price       decimal.Decimal `db:"price" json:"price"`
}

type CreateLabTestRequest struct {
	Code        string          `json:"code" validate:"required,max=50"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description"`
	NormalRange string          `json:"normal_range" validate:"max=100"`
	Units       string          `json:"units" validate:"max=50"`
	Price       decimal.Decimal `json:"price"`
}

type LabOrderStatus string

const (
	LabOrderStatusPending    LabOrderStatus = "PENDING"
	LabOrderStatusInProgress LabOrderStatus = "IN_PROGRESS"
	LabOrderStatusCompleted  LabOrderStatus = "COMPLETED"
	LabOrderStatusCancelled  LabOrderStatus = "CANCELLED"
)

var labOrderTransitions = map[LabOrderStatus][]LabOrderStatus{
	LabOrderStatusPending:    {LabOrderStatusInProgress, LabOrderStatusCancelled},
	LabOrderStatusInProgress: {LabOrderStatusCompleted, LabOrderStatusCancelled},
}

func ParseLabOrderStatus(s string) (LabOrderStatus, error) {
	status := LabOrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case LabOrderStatusPending, LabOrderStatusInProgress, LabOrderStatusCompleted, LabOrderStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("unknown lab order status %q", s)
}

func (s LabOrderStatus) CanTransitionTo(next LabOrderStatus) bool {
	for _, allowed := range labOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type LabOrder struct {
	Base
	PatientID uuid.UUID      `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID      `db:"doctor_id" json:"doctor_id"`
	OrderDate time.Time      `db:"order_date" json:"order_date"`
	Status    LabOrderStatus `db:"status" json:"status"`
	Notes     string         `db:"notes" json:"notes"`
}

type CreateLabOrderRequest struct {
	PatientID uuid.UUID `json:"patient_id" validate:"required"`
	DoctorID  uuid.UUID `json:"doctor_id" validate:"required"`
	Notes     string    `json:"notes" validate:"max=1000"`
}

type UpdateLabOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type LabOrderFilters struct {
	PatientID *uuid.UUID
	Status    *LabOrderStatus
}

type LabResult struct {
	Base
	LabOrderID     uuid.UUID `db:"lab_order_id" json:"lab_order_id"`
	TestName       string    `db:"test_name" json:"test_name"`
	ResultValue    string    `db:"result_value" json:"result_value"`
	Unit           string    `db:"unit" json:"unit"`
	ReferenceRange string    `db:"reference_range" json:"reference_range"`
	IsAbnormal     bool      `db:"is_abnormal" json:"is_abnormal"`
	Remarks        string    `db:"remarks" json:"remarks"`
}

type CreateLabResultRequest struct {
	LabOrderID     uuid.UUID `json:"lab_order_id" validate:"required"`
	TestName       string    `json:"test_name" validate:"required,max=200"`
	ResultValue    string    `json:"result_value" validate:"required,max=200"`
	Unit           string    `json:"unit" validate:"max=50"`
	ReferenceRange string    `json:"reference_range" validate:"max=100"`
	IsAbnormal     bool      `json:"is_abnormal"`
	Remarks        string    `json:"remarks"`
}
