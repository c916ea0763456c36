package search

import (
	"context"
	"strings"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type Results struct {
	Patients    []*model.Patient `json:"patients"`
	Doctors     []*model.Doctor  `json:"doctors"`
	Specialists []*model.Doctor  `json:"specialists"`
}

type Service struct {
	patients repository.PatientRepository
	doctors  repository.DoctorRepository
}

func NewService(patients repository.PatientRepository, doctors repository.DoctorRepository) *Service {
	return &Service{patients: patients, doctors: doctors}
}

// Search matches patients and doctors by name and doctors by
// specialization. A blank query matches nothing.
func (s *Service) Search(ctx context.Context, query string) (*Results, error) {
	query = strings.TrimSpace(query)
	res := &Results{
		Patients:    []*model.Patient{},
		Doctors:     []*model.Doctor{},
		Specialists: []*model.Doctor{},
	}
	if query == "" {
		return res, nil
	}

	var err error
	if res.Patients, err = s.patients.List(ctx, &model.PatientFilters{Name: query}); err != nil {
		return nil, err
	}
	if res.Doctors, err = s.doctors.List(ctx, &model.DoctorFilters{Name: query}); err != nil {
		return nil, err
	}
	if res.Specialists, err = s.doctors.List(ctx, &model.DoctorFilters{Specialization: query}); err != nil {
		return nil, err
	}
	return res, nil
}
