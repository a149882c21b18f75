package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HistoryCap is the number of readings retained per patient. Creating a
// reading beyond the cap evicts the oldest.
const HistoryCap = 50

type Repository interface {
	Create(ctx context.Context, r *Reading) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reading, error)
	// Latest returns the most recent reading for the patient, or nil when
	// the patient has no readings.
	Latest(ctx context.Context, patientID uuid.UUID) (*Reading, error)
	// History returns readings taken at or after since, oldest first.
	History(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Reading, error)
	// ListByPatient returns a newest-first page of readings taken at or
	// after since; a zero since imposes no lower bound.
	ListByPatient(ctx context.Context, patientID uuid.UUID, since time.Time, limit, offset int) ([]*Reading, int, error)
}
