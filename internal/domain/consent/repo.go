package consent

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Consent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consent, error)
	Update(ctx context.Context, c *Consent) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consent, int, error)

	// ActiveByPatientScope returns the patient's consents for a scope with
	// status active, regardless of validity window. The caller applies the
	// time check.
	ActiveByPatientScope(ctx context.Context, patientID uuid.UUID, scope string) ([]*Consent, error)
}
