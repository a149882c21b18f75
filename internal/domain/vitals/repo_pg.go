package vitals

import (
	"context"
	"errors"
	"time"

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

const readingCols = `id, patient_id, heart_rate, blood_pressure, oxygen_saturation,
	temperature, respiratory_rate, heart_rate_variability, source, quality,
	taken_at, created_at`

func (r *repoPG) scanReading(row pgx.Row) (*Reading, error) {
	var v Reading
	err := row.Scan(&v.ID, &v.PatientID, &v.HeartRate, &v.BloodPressure, &v.OxygenSaturation,
		&v.Temperature, &v.RespiratoryRate, &v.HeartRateVariability, &v.Source, &v.Quality,
		&v.TakenAt, &v.CreatedAt)
	return &v, err
}

// Create inserts the reading and trims the patient's history back to
// HistoryCap, evicting the oldest readings first.
func (r *repoPG) Create(ctx context.Context, v *Reading) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vitals_reading (id, patient_id, heart_rate, blood_pressure, oxygen_saturation,
			temperature, respiratory_rate, heart_rate_variability, source, quality, taken_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		v.ID, v.PatientID, v.HeartRate, v.BloodPressure, v.OxygenSaturation,
		v.Temperature, v.RespiratoryRate, v.HeartRateVariability, v.Source, v.Quality, v.TakenAt)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		DELETE FROM vitals_reading
		WHERE patient_id = $1 AND id IN (
			SELECT id FROM vitals_reading
			WHERE patient_id = $1
			ORDER BY taken_at DESC, created_at DESC
			OFFSET $2
		)`, v.PatientID, HistoryCap)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reading, error) {
	return r.scanReading(r.conn(ctx).QueryRow(ctx, `SELECT `+readingCols+` FROM vitals_reading WHERE id = $1`, id))
}

func (r *repoPG) Latest(ctx context.Context, patientID uuid.UUID) (*Reading, error) {
	v, err := r.scanReading(r.conn(ctx).QueryRow(ctx, `
		SELECT `+readingCols+` FROM vitals_reading
		WHERE patient_id = $1
		ORDER BY taken_at DESC, created_at DESC
		LIMIT 1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *repoPG) History(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Reading, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+readingCols+` FROM vitals_reading
		WHERE patient_id = $1 AND taken_at >= $2
		ORDER BY taken_at ASC, created_at ASC`, patientID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Reading
	for rows.Next() {
		v, err := r.scanReading(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, since time.Time, limit, offset int) ([]*Reading, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vitals_reading WHERE patient_id = $1 AND taken_at >= $2`, patientID, since).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+readingCols+` FROM vitals_reading
		WHERE patient_id = $1 AND taken_at >= $2
		ORDER BY taken_at DESC, created_at DESC
		LIMIT $3 OFFSET $4`, patientID, since, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Reading
	for rows.Next() {
		v, err := r.scanReading(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}
