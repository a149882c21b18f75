package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/triagebios/triage/internal/domain/vitals"
	"github.com/triagebios/triage/internal/platform/ai"
	"github.com/triagebios/triage/internal/platform/dispatch"
)

// Consent scope that permits sharing assessments with care teams.
const consentScopeCareCoordination = "care-coordination"

// VitalsReader is the slice of the vitals service an assessment needs.
type VitalsReader interface {
	Latest(ctx context.Context, patientID uuid.UUID) (*vitals.Reading, error)
	Trends(ctx context.Context, patientID uuid.UUID, window time.Duration) (*vitals.TrendReport, error)
}

// ConsentChecker reports whether a patient has an active consent for a scope.
type ConsentChecker interface {
	ActiveForPatient(ctx context.Context, patientID uuid.UUID, scope string) (bool, error)
}

// AlertDispatcher accepts alerts for asynchronous delivery.
type AlertDispatcher interface {
	Enqueue(alert dispatch.Alert) bool
}

type Service struct {
	repo       Repository
	vitals     VitalsReader
	scorer     ai.Scorer
	consent    ConsentChecker
	dispatcher AlertDispatcher
	thresholds vitals.Thresholds
	now        func() time.Time
	logger     zerolog.Logger
}

func NewService(repo Repository, vr VitalsReader, scorer ai.Scorer, consent ConsentChecker,
	dispatcher AlertDispatcher, thresholds vitals.Thresholds, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		vitals:     vr,
		scorer:     scorer,
		consent:    consent,
		dispatcher: dispatcher,
		thresholds: thresholds,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AssessRequest is the input to a triage assessment.
type AssessRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Complaint string    `json:"complaint"`
	Symptoms  []string  `json:"symptoms"`
}

// Assess scores the complaint, adjusts the score against the patient's
// latest vitals, persists the result, and notifies subscribed endpoints
// when the case is urgent and the patient has consented to sharing.
func (s *Service) Assess(ctx context.Context, req *AssessRequest) (*Assessment, error) {
	// -- validate --
	if req == nil {
		return nil, fmt.Errorf("assessment request is required")
	}
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(req.Complaint) == "" {
		return nil, fmt.Errorf("complaint is required")
	}

	// -- base severity from the complaint --
	base, err := s.scorer.Score(ctx, req.Complaint, req.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("severity scoring failed: %w", err)
	}

	// -- vitals adjustment --
	// A patient with no readings is still assessable; the lookup failing
	// downgrades to a symptoms-only assessment rather than erroring.
	reading, err := s.vitals.Latest(ctx, req.PatientID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", req.PatientID.String()).
			Msg("latest vitals lookup failed, assessing without vitals")
		reading = nil
	}

	boost, findings := vitals.SeverityBoost(reading, s.thresholds)
	score := Fuse(base.Score, boost)

	a := &Assessment{
		PatientID:          req.PatientID,
		Complaint:          strings.TrimSpace(req.Complaint),
		Symptoms:           req.Symptoms,
		BaseScore:          base.Score,
		VitalsBoost:        boost,
		Score:              score,
		Confidence:         base.Confidence,
		Urgency:            UrgencyFor(score),
		VitalsExplanation:  BoostExplanation(reading, boost, s.thresholds),
		KeySymptoms:        base.KeySymptoms,
		ConcerningFindings: append(base.ConcerningFindings, findings...),
		RecommendedActions: base.RecommendedActions,
		ModelVersion:       base.ModelVersion,
	}
	a.ConfidenceLower, a.ConfidenceUpper = ConfidenceBounds(score, base.Confidence)
	if reading != nil {
		a.VitalsReadingID = &reading.ID
		a.Vitals = reading
	}

	// -- persist --
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to store assessment: %w", err)
	}

	// -- enrich the response --
	s.attachTrends(ctx, a)

	// -- notify care teams --
	s.notify(ctx, a)

	return a, nil
}

// attachTrends decorates the assessment with the patient's current trend
// report. The report is response-only; a failure here never fails the
// assessment.
func (s *Service) attachTrends(ctx context.Context, a *Assessment) {
	if a.VitalsReadingID == nil {
		return
	}
	report, err := s.vitals.Trends(ctx, a.PatientID, vitals.DefaultWindow)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", a.PatientID.String()).
			Msg("trend analysis failed, returning assessment without trends")
		return
	}
	a.Trends = report
}

// notify enqueues an alert for critical and urgent assessments, but only
// when the patient holds an active care-coordination consent.
func (s *Service) notify(ctx context.Context, a *Assessment) {
	if a.Urgency != UrgencyCritical && a.Urgency != UrgencyUrgent {
		return
	}

	ok, err := s.consent.ActiveForPatient(ctx, a.PatientID, consentScopeCareCoordination)
	if err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", a.PatientID.String()).
			Msg("consent check failed, suppressing alert")
		return
	}
	if !ok {
		return
	}

	payload, err := json.Marshal(a)
	if err != nil {
		s.logger.Error().Err(err).
			Str("assessment_id", a.ID.String()).
			Msg("marshal assessment for alert failed")
		return
	}

	alert := dispatch.Alert{
		ID:        uuid.New(),
		Event:     "triage." + string(a.Urgency),
		PatientID: a.PatientID,
		Payload:   payload,
		CreatedAt: s.now(),
	}
	if !s.dispatcher.Enqueue(alert) {
		s.logger.Warn().
			Str("assessment_id", a.ID.String()).
			Str("event", alert.Event).
			Msg("alert dropped, dispatcher unavailable")
	}
}

func (s *Service) GetAssessment(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
