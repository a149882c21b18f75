package triage

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores assessments. An assessment is immutable once created;
// there is no update path.
type Repository interface {
	Create(ctx context.Context, a *Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error)
}
