package vitals

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// mockRepo is a map-backed Repository that mirrors the per-patient history
// cap the Postgres implementation enforces on insert.
type mockRepo struct {
	readings map[uuid.UUID]*Reading
}

func newMockRepo() *mockRepo {
	return &mockRepo{readings: make(map[uuid.UUID]*Reading)}
}

func (m *mockRepo) Create(ctx context.Context, r *Reading) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	m.readings[r.ID] = r
	m.evict(r.PatientID)
	return nil
}

func (m *mockRepo) evict(patientID uuid.UUID) {
	history := m.byPatient(patientID)
	if len(history) <= HistoryCap {
		return
	}
	for _, r := range history[HistoryCap:] {
		delete(m.readings, r.ID)
	}
}

// byPatient returns the patient's readings newest first.
func (m *mockRepo) byPatient(patientID uuid.UUID) []*Reading {
	var out []*Reading
	for _, r := range m.readings {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Reading, error) {
	r, ok := m.readings[id]
	if !ok {
		return nil, fmt.Errorf("reading not found")
	}
	return r, nil
}

func (m *mockRepo) Latest(ctx context.Context, patientID uuid.UUID) (*Reading, error) {
	history := m.byPatient(patientID)
	if len(history) == 0 {
		return nil, nil
	}
	return history[0], nil
}

func (m *mockRepo) History(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Reading, error) {
	var out []*Reading
	for _, r := range m.byPatient(patientID) {
		if !r.TakenAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.Before(out[j].TakenAt) })
	return out, nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, since time.Time, limit, offset int) ([]*Reading, int, error) {
	var history []*Reading
	for _, r := range m.byPatient(patientID) {
		if !r.TakenAt.Before(since) {
			history = append(history, r)
		}
	}
	total := len(history)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return history[offset:end], total, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo, NewSnapshotCache(nil, 0), zerolog.Nop()).WithClock(fixedClock)
	return svc, repo
}

func newTestServiceWithCache(t *testing.T) (*Service, *mockRepo, *SnapshotCache) {
	t.Helper()
	repo := newMockRepo()
	cache, _ := newTestCache(t)
	svc := NewService(repo, cache, zerolog.Nop()).WithClock(fixedClock)
	return svc, repo, cache
}

func TestService_Ingest(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	r := &Reading{
		PatientID: uuid.New(),
		HeartRate: ptrFloat(72),
	}
	if err := svc.Ingest(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID == uuid.Nil {
		t.Error("expected reading ID assigned")
	}
	if !r.TakenAt.Equal(analysisTime) {
		t.Errorf("expected taken_at defaulted to clock time, got %s", r.TakenAt)
	}
	if len(repo.readings) != 1 {
		t.Errorf("expected 1 stored reading, got %d", len(repo.readings))
	}
}

func TestService_Ingest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		reading *Reading
		wantErr bool
	}{
		{"missing patient", &Reading{HeartRate: ptrFloat(72)}, true},
		{"no vitals", &Reading{PatientID: uuid.New()}, true},
		{"quality below range", &Reading{PatientID: uuid.New(), HeartRate: ptrFloat(72), Quality: ptrFloat(-0.1)}, true},
		{"quality above range", &Reading{PatientID: uuid.New(), HeartRate: ptrFloat(72), Quality: ptrFloat(1.1)}, true},
		{"quality at zero", &Reading{PatientID: uuid.New(), HeartRate: ptrFloat(72), Quality: ptrFloat(0)}, false},
		{"quality at one", &Reading{PatientID: uuid.New(), HeartRate: ptrFloat(72), Quality: ptrFloat(1)}, false},
		{"blood pressure only", &Reading{PatientID: uuid.New(), BloodPressure: ptrStr("120/80")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			err := svc.Ingest(context.Background(), tt.reading)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestService_Ingest_RefreshesSnapshot(t *testing.T) {
	svc, _, cache := newTestServiceWithCache(t)
	ctx := context.Background()

	patientID := uuid.New()
	r := &Reading{
		PatientID: patientID,
		HeartRate: ptrFloat(90),
		TakenAt:   analysisTime.Add(-5 * time.Minute),
	}
	if err := svc.Ingest(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, err := cache.Latest(ctx, patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached == nil || cached.ID != r.ID {
		t.Errorf("expected snapshot refreshed with %s, got %+v", r.ID, cached)
	}
}

func TestService_Ingest_BackfillKeepsNewerSnapshot(t *testing.T) {
	svc, _, cache := newTestServiceWithCache(t)
	ctx := context.Background()

	patientID := uuid.New()
	current := &Reading{
		PatientID: patientID,
		HeartRate: ptrFloat(80),
		TakenAt:   analysisTime.Add(-10 * time.Minute),
	}
	if err := svc.Ingest(ctx, current); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	backfill := &Reading{
		PatientID: patientID,
		HeartRate: ptrFloat(70),
		TakenAt:   analysisTime.Add(-2 * time.Hour),
	}
	if err := svc.Ingest(ctx, backfill); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, err := cache.Latest(ctx, patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached == nil || cached.ID != current.ID {
		t.Error("expected snapshot to keep the newer reading after a backfill")
	}
}

func TestService_Latest_RepairsCacheOnMiss(t *testing.T) {
	svc, repo, cache := newTestServiceWithCache(t)
	ctx := context.Background()

	patientID := uuid.New()
	stored := &Reading{
		PatientID: patientID,
		HeartRate: ptrFloat(95),
		TakenAt:   analysisTime.Add(-30 * time.Minute),
	}
	if err := repo.Create(ctx, stored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.Latest(ctx, patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != stored.ID {
		t.Fatalf("expected stored reading, got %+v", got)
	}

	cached, err := cache.Latest(ctx, patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached == nil || cached.ID != stored.ID {
		t.Error("expected cache repaired from the database")
	}
}

func TestService_Latest_PrefersCache(t *testing.T) {
	svc, repo, cache := newTestServiceWithCache(t)
	ctx := context.Background()

	patientID := uuid.New()
	inDB := &Reading{
		PatientID: patientID,
		HeartRate: ptrFloat(60),
		TakenAt:   analysisTime.Add(-time.Hour),
	}
	if err := repo.Create(ctx, inDB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inCache := &Reading{
		ID:        uuid.New(),
		PatientID: patientID,
		HeartRate: ptrFloat(85),
		TakenAt:   analysisTime.Add(-10 * time.Minute),
	}
	if err := cache.SetLatest(ctx, inCache); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.Latest(ctx, patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != inCache.ID {
		t.Error("expected the cached snapshot to win")
	}
}

func TestService_Latest_NoReadings(t *testing.T) {
	svc, _ := newTestService()

	got, err := svc.Latest(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for patient with no readings, got %+v", got)
	}
}

func TestService_HistoryCap(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	patientID := uuid.New()
	base := analysisTime.Add(-55 * time.Minute)
	for i := 0; i < 55; i++ {
		r := &Reading{
			PatientID: patientID,
			HeartRate: ptrFloat(70),
			TakenAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := svc.Ingest(ctx, r); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	_, total, err := svc.ListByPatient(ctx, patientID, 0, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != HistoryCap {
		t.Errorf("expected history capped at %d, got %d", HistoryCap, total)
	}

	history, err := svc.History(ctx, patientID, DefaultWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != HistoryCap {
		t.Fatalf("expected %d readings, got %d", HistoryCap, len(history))
	}
	wantOldest := base.Add(5 * time.Minute)
	if !history[0].TakenAt.Equal(wantOldest) {
		t.Errorf("expected oldest five evicted, oldest kept %s, want %s", history[0].TakenAt, wantOldest)
	}
}

func TestService_History_WindowFilter(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	patientID := uuid.New()
	old := &Reading{PatientID: patientID, HeartRate: ptrFloat(70), TakenAt: analysisTime.Add(-30 * time.Hour)}
	recent := &Reading{PatientID: patientID, HeartRate: ptrFloat(72), TakenAt: analysisTime.Add(-time.Hour)}
	for _, r := range []*Reading{old, recent} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history, err := svc.History(ctx, patientID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 in-window reading under the default window, got %d", len(history))
	}
	if history[0].ID != recent.ID {
		t.Error("expected only the recent reading")
	}
}

func TestService_Trends(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	patientID := uuid.New()
	values := []float64{70, 90, 110}
	for i, v := range values {
		r := &Reading{
			PatientID: patientID,
			HeartRate: ptrFloat(v),
			TakenAt:   analysisTime.Add(-time.Duration(len(values)-1-i) * time.Hour),
		}
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	report, err := svc.Trends(ctx, patientID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ReadingCount != 3 {
		t.Errorf("expected 3 readings analyzed, got %d", report.ReadingCount)
	}
	if report.WindowHours != 24 {
		t.Errorf("expected default 24h window, got %f", report.WindowHours)
	}
	hr, ok := report.Signals[SignalHeartRate]
	if !ok || hr.Direction != TrendIncreasing {
		t.Errorf("expected increasing heart rate, got %+v", hr)
	}
}

func TestService_GetReading(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	stored := &Reading{PatientID: uuid.New(), HeartRate: ptrFloat(72), TakenAt: analysisTime}
	if err := repo.Create(ctx, stored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.GetReading(ctx, stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != stored.ID {
		t.Errorf("expected %s, got %s", stored.ID, got.ID)
	}

	if _, err := svc.GetReading(ctx, uuid.New()); err == nil {
		t.Error("expected error for unknown reading")
	}
}
