package triage

import (
	"time"

	"github.com/google/uuid"

	"github.com/triagebios/triage/internal/domain/vitals"
)

// Urgency is the four-level triage category derived from a severity score.
type Urgency string

const (
	UrgencyCritical  Urgency = "critical"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyStandard  Urgency = "standard"
	UrgencyNonUrgent Urgency = "non_urgent"
)

// Assessment maps to the triage_assessment table. Score is always the
// clamped sum of BaseScore and VitalsBoost, and Urgency is always derived
// from Score; neither is ever set independently of the other.
type Assessment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	Complaint          string     `db:"complaint" json:"complaint"`
	Symptoms           []string   `db:"symptoms" json:"symptoms,omitempty"`
	BaseScore          float64    `db:"base_score" json:"base_score"`
	VitalsBoost        float64    `db:"vitals_boost" json:"vitals_boost"`
	Score              float64    `db:"score" json:"score"`
	Confidence         float64    `db:"confidence" json:"confidence"`
	ConfidenceLower    float64    `db:"confidence_lower" json:"confidence_lower"`
	ConfidenceUpper    float64    `db:"confidence_upper" json:"confidence_upper"`
	Urgency            Urgency    `db:"urgency" json:"urgency"`
	VitalsExplanation  string     `db:"vitals_explanation" json:"vitals_explanation"`
	KeySymptoms        []string   `db:"key_symptoms" json:"key_symptoms,omitempty"`
	ConcerningFindings []string   `db:"concerning_findings" json:"concerning_findings,omitempty"`
	RecommendedActions []string   `db:"recommended_actions" json:"recommended_actions,omitempty"`
	VitalsReadingID    *uuid.UUID `db:"vitals_reading_id" json:"vitals_reading_id,omitempty"`
	ModelVersion       string     `db:"model_version" json:"model_version"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`

	// Vitals and Trends enrich API responses; neither is persisted with
	// the assessment row.
	Vitals *vitals.Reading     `db:"-" json:"vitals,omitempty"`
	Trends *vitals.TrendReport `db:"-" json:"trends,omitempty"`
}
