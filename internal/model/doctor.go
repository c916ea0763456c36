package model

type Doctor struct {
	Base
	Name           string `db:"name" json:"name"`
	Email          string `db:"email" json:"email"`
	Phone          string `db:"phone" json:"phone"`
	Specialization string `db:"specialization" json:"specialization"`
	Available      bool   `db:"available" json:"available"`
	AvailableTimes string `db:"available_times" json:"available_times"`
}

type CreateDoctorRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone" validate:"max=30"`
	Specialization string `json:"specialization" validate:"max=100"`
	Available      *bool  `json:"available"`
	AvailableTimes string `json:"available_times" validate:"max=200"`
}

type UpdateDoctorRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=30"`
	Specialization *string `json:"specialization" validate:"omitempty,max=100"`
	Available      *bool   `json:"available"`
	AvailableTimes *string `json:"available_times" validate:"omitempty,max=200"`
}

type SetAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type DoctorFilters struct {
	Name           string `form:"name"`
	Specialization string `form:"specialization"`
	AvailableOnly  bool   `form:"available"`
}
