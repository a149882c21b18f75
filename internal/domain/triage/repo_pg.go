package triage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triagebios/triage/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const assessmentCols = `id, patient_id, complaint, symptoms, base_score, vitals_boost, score,
	confidence, confidence_lower, confidence_upper, urgency, vitals_explanation,
	key_symptoms, concerning_findings, recommended_actions, vitals_reading_id,
	model_version, created_at`

func (r *repoPG) scanAssessment(row pgx.Row) (*Assessment, error) {
	var a Assessment
	err := row.Scan(&a.ID, &a.PatientID, &a.Complaint, &a.Symptoms, &a.BaseScore, &a.VitalsBoost, &a.Score,
		&a.Confidence, &a.ConfidenceLower, &a.ConfidenceUpper, &a.Urgency, &a.VitalsExplanation,
		&a.KeySymptoms, &a.ConcerningFindings, &a.RecommendedActions, &a.VitalsReadingID,
		&a.ModelVersion, &a.CreatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Assessment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO triage_assessment (id, patient_id, complaint, symptoms, base_score, vitals_boost, score,
			confidence, confidence_lower, confidence_upper, urgency, vitals_explanation,
			key_symptoms, concerning_findings, recommended_actions, vitals_reading_id, model_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		a.ID, a.PatientID, a.Complaint, a.Symptoms, a.BaseScore, a.VitalsBoost, a.Score,
		a.Confidence, a.ConfidenceLower, a.ConfidenceUpper, a.Urgency, a.VitalsExplanation,
		a.KeySymptoms, a.ConcerningFindings, a.RecommendedActions, a.VitalsReadingID, a.ModelVersion)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	return r.scanAssessment(r.conn(ctx).QueryRow(ctx, `SELECT `+assessmentCols+` FROM triage_assessment WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM triage_assessment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+assessmentCols+` FROM triage_assessment WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Assessment
	for rows.Next() {
		a, err := r.scanAssessment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
