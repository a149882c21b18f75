// Package consent tracks what a patient has agreed to share. Alert
// delivery to care teams is gated on an active consent for the
// care-coordination scope.
package consent

import (
	"time"

	"github.com/google/uuid"
)

// Consent statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusRejected = "rejected"
)

// Consent maps to the consent table. A consent grants one named scope for
// an optional validity period; unset Start means effective immediately,
// unset End means open-ended.
type Consent struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	Scope     string     `db:"scope" json:"scope"`
	Status    string     `db:"status" json:"status"`
	Start     *time.Time `db:"start_at" json:"start_at,omitempty"`
	End       *time.Time `db:"end_at" json:"end_at,omitempty"`
	Note      *string    `db:"note" json:"note,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
