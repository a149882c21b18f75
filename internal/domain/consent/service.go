package consent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func validStatus(status string) bool {
	switch status {
	case StatusActive, StatusInactive, StatusRejected:
		return true
	}
	return false
}

func (s *Service) validate(c *Consent) error {
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(c.Scope) == "" {
		return fmt.Errorf("scope is required")
	}
	if !validStatus(c.Status) {
		return fmt.Errorf("status must be one of active, inactive, rejected")
	}
	if c.Start != nil && c.End != nil && c.End.Before(*c.Start) {
		return fmt.Errorf("end_at must not precede start_at")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, c *Consent) error {
	if c.Status == "" {
		c.Status = StatusActive
	}
	if err := s.validate(c); err != nil {
		return err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consent, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *Consent) error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if err := s.validate(c); err != nil {
		return err
	}
	return s.repo.Update(ctx, c)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consent, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ActiveForPatient reports whether any consent grants the scope right now:
// status active, already started, and not yet ended.
func (s *Service) ActiveForPatient(ctx context.Context, patientID uuid.UUID, scope string) (bool, error) {
	consents, err := s.repo.ActiveByPatientScope(ctx, patientID, scope)
	if err != nil {
		return false, err
	}
	now := s.now()
	for _, c := range consents {
		if c.Start != nil && c.Start.After(now) {
			continue
		}
		if c.End != nil && c.End.Before(now) {
			continue
		}
		return true, nil
	}
	return false, nil
}
