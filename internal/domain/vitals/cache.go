package vitals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const latestKeyPrefix = "vitals:latest:"

// SnapshotCache keeps the most recent reading per patient in Redis so the
// scoring pipeline can pick up current vitals without a database round
// trip. A nil client disables the cache: writes are dropped and reads
// always miss, which callers treat as a plain cache miss.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

// Enabled reports whether a Redis client is attached.
func (c *SnapshotCache) Enabled() bool {
	return c != nil && c.client != nil
}

func latestKey(patientID uuid.UUID) string {
	return latestKeyPrefix + patientID.String()
}

// SetLatest stores the reading as the patient's current snapshot.
func (c *SnapshotCache) SetLatest(ctx context.Context, r *Reading) error {
	if !c.Enabled() || r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	if err := c.client.Set(ctx, latestKey(r.PatientID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set latest reading: %w", err)
	}
	return nil
}

// Latest returns the cached snapshot for the patient, or nil on a miss.
func (c *SnapshotCache) Latest(ctx context.Context, patientID uuid.UUID) (*Reading, error) {
	if !c.Enabled() {
		return nil, nil
	}
	val, err := c.client.Get(ctx, latestKey(patientID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest reading: %w", err)
	}
	var r Reading
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, fmt.Errorf("unmarshal cached reading: %w", err)
	}
	return &r, nil
}

// Invalidate removes the patient's snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context, patientID uuid.UUID) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Del(ctx, latestKey(patientID)).Err()
}
