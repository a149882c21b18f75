package vitals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo     Repository
	cache    *SnapshotCache
	analyzer *Analyzer
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(repo Repository, cache *SnapshotCache, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		analyzer: NewAnalyzer(),
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock aligns the service and its analyzer on one time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.analyzer.WithClock(now)
	return s
}

// Ingest validates and stores a reading, then refreshes the patient's
// snapshot cache. Cache failures are logged and swallowed; the reading is
// already durable at that point.
func (s *Service) Ingest(ctx context.Context, r *Reading) error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if !r.HasAnyVital() {
		return fmt.Errorf("at least one vital sign is required")
	}
	if r.Quality != nil && (*r.Quality < 0 || *r.Quality > 1) {
		return fmt.Errorf("quality must be between 0 and 1")
	}
	if r.TakenAt.IsZero() {
		r.TakenAt = s.now()
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return err
	}
	s.refreshSnapshot(ctx, r)
	return nil
}

// refreshSnapshot updates the cached latest reading unless an ingested
// backfill is older than what is already cached.
func (s *Service) refreshSnapshot(ctx context.Context, r *Reading) {
	if !s.cache.Enabled() {
		return
	}
	cached, err := s.cache.Latest(ctx, r.PatientID)
	if err == nil && cached != nil && r.TakenAt.Before(cached.TakenAt) {
		return
	}
	if err := s.cache.SetLatest(ctx, r); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", r.PatientID.String()).Msg("vitals snapshot cache update failed")
	}
}

func (s *Service) GetReading(ctx context.Context, id uuid.UUID) (*Reading, error) {
	return s.repo.GetByID(ctx, id)
}

// Latest returns the patient's most recent reading, preferring the cache
// and repairing it from the database on a miss. A patient with no readings
// yields (nil, nil).
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*Reading, error) {
	cached, err := s.cache.Latest(ctx, patientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("vitals snapshot cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	latest, err := s.repo.Latest(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		if err := s.cache.SetLatest(ctx, latest); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("vitals snapshot cache repair failed")
		}
	}
	return latest, nil
}

// History returns the patient's readings inside the window, oldest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, window time.Duration) ([]*Reading, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	return s.repo.History(ctx, patientID, s.now().Add(-window))
}

// ListByPatient returns a newest-first page of readings. A positive window
// restricts the page to readings taken inside it; zero means unbounded.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, window time.Duration, limit, offset int) ([]*Reading, int, error) {
	var since time.Time
	if window > 0 {
		since = s.now().Add(-window)
	}
	return s.repo.ListByPatient(ctx, patientID, since, limit, offset)
}

// Trends loads the in-window history and runs the trend analysis.
func (s *Service) Trends(ctx context.Context, patientID uuid.UUID, window time.Duration) (*TrendReport, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	history, err := s.History(ctx, patientID, window)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(patientID, history, window), nil
}
