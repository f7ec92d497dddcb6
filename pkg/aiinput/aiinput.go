// Package aiinput builds the compact structured clinical input the AI
// pipeline (C8) feeds to the LLM, and caches it per patient with a short
// TTL (C7).
package aiinput

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medibrief/api/pkg/clinical"
)

// CacheTTL is the default structured-input cache lifetime (spec.md §4.7).
const CacheTTL = 5 * time.Minute

const cacheKeyPrefix = "ai:structured-input:"

// maxVitals/maxLabs/maxConsultations bound how much history feeds a single
// structured input (spec.md §4.7).
const (
	maxVitals        = 20
	maxLabs          = 20
	maxConsultations = 10
	maxSymptoms      = 5
	maxLabValues     = 8
	maxTrendPoints   = 10
)

// StructuredInput is the compact, patient-level clinical snapshot built
// for one summary-generation job (spec.md §4.7).
type StructuredInput struct {
	Age             int       `json:"age"`
	BPTrend         []float64 `json:"bpTrend"`
	GlucoseTrend    []float64 `json:"glucoseTrend"`
	HeartRateTrend  []float64 `json:"heartRateTrend"`
	WeightTrend     []float64 `json:"weightTrend"`
	RecentSymptoms  []string  `json:"recentSymptoms"`
	RecentLabValues []string  `json:"recentLabValues"`
}

// Fetcher is the subset of store operations needed to assemble a
// StructuredInput. StoreFetcher (store.go) adapts pkg/clinical.Store and
// pkg/patient.Store to it; pkg/aipipeline builds one per request or activity.
type Fetcher interface {
	ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]clinical.VitalRecord, error)
	ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]clinical.LabResult, error)
	ListRecentConsultationSymptoms(ctx context.Context, patientID uuid.UUID, limit int) ([]string, error)
	PatientAge(ctx context.Context, patientID uuid.UUID) (int, error)
}

// Build assembles a StructuredInput by fetching the most recent vitals,
// labs, and consultations for a patient and projecting them down to the
// compact shape the LLM prompt expects (spec.md §4.7).
func Build(ctx context.Context, f Fetcher, patientID uuid.UUID) (StructuredInput, error) {
	age, err := f.PatientAge(ctx, patientID)
	if err != nil {
		return StructuredInput{}, fmt.Errorf("fetching patient age: %w", err)
	}

	vitals, err := f.ListVitals(ctx, patientID, maxVitals)
	if err != nil {
		return StructuredInput{}, fmt.Errorf("fetching vitals: %w", err)
	}
	labs, err := f.ListLabs(ctx, patientID, maxLabs)
	if err != nil {
		return StructuredInput{}, fmt.Errorf("fetching labs: %w", err)
	}
	symptoms, err := f.ListRecentConsultationSymptoms(ctx, patientID, maxConsultations)
	if err != nil {
		return StructuredInput{}, fmt.Errorf("fetching consultations: %w", err)
	}

	in := StructuredInput{
		Age:            age,
		BPTrend:        trendFor(vitals, clinical.VitalBP),
		GlucoseTrend:   trendFor(vitals, clinical.VitalGlucose),
		HeartRateTrend: trendFor(vitals, clinical.VitalHeartRate),
		WeightTrend:    trendFor(vitals, clinical.VitalWeight),
	}

	if len(symptoms) > maxSymptoms {
		symptoms = symptoms[:maxSymptoms]
	}
	in.RecentSymptoms = symptoms

	labValues := make([]string, 0, len(labs))
	for _, l := range labs {
		if len(labValues) >= maxLabValues {
			break
		}
		labValues = append(labValues, l.TestName+": "+l.Value)
	}
	in.RecentLabValues = labValues

	return in, nil
}

// trendFor projects a patient's vitals for one type to a most-recent-first
// numeric series capped at maxTrendPoints. Vitals arrive recordedAt desc
// from the store, so this is a straight filter + truncate, no re-sort.
func trendFor(vitals []clinical.VitalRecord, vitalType string) []float64 {
	out := make([]float64, 0, maxTrendPoints)
	for _, v := range vitals {
		if v.Type != vitalType || v.NumericValue == nil {
			continue
		}
		out = append(out, *v.NumericValue)
		if len(out) >= maxTrendPoints {
			break
		}
	}
	return out
}

// Cache wraps a Redis client to cache StructuredInputs keyed by patient,
// with non-fatal read/write failures falling back to recomputation
// (spec.md §4.7). It also implements pkg/clinical.Invalidator.
type Cache struct {
	rdb    *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewCache creates a structured-input Cache.
func NewCache(rdb *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{rdb: rdb, logger: logger, ttl: CacheTTL}
}

func cacheKey(patientID uuid.UUID) string {
	return cacheKeyPrefix + patientID.String()
}

// Get returns the cached StructuredInput for a patient, or ok=false on a
// miss or any Redis error (treated identically: a miss just means the
// caller recomputes).
func (c *Cache) Get(ctx context.Context, patientID uuid.UUID) (StructuredInput, bool) {
	val, err := c.rdb.Get(ctx, cacheKey(patientID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("structured input cache read failed, recomputing", "error", err, "patient_id", patientID)
		}
		return StructuredInput{}, false
	}

	var in StructuredInput
	if err := json.Unmarshal([]byte(val), &in); err != nil {
		c.logger.Warn("structured input cache value corrupt, recomputing", "error", err, "patient_id", patientID)
		return StructuredInput{}, false
	}
	return in, true
}

// Set stores a StructuredInput with the cache TTL. Write failures are
// logged and otherwise ignored.
func (c *Cache) Set(ctx context.Context, patientID uuid.UUID, in StructuredInput) {
	data, err := json.Marshal(in)
	if err != nil {
		c.logger.Warn("marshaling structured input for cache", "error", err, "patient_id", patientID)
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(patientID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("structured input cache write failed", "error", err, "patient_id", patientID)
	}
}

// Invalidate evicts the cached entry for a patient. Failures are logged
// and otherwise ignored: a stale-but-expiring key is acceptable given the
// short TTL (spec.md §4.7).
func (c *Cache) Invalidate(ctx context.Context, patientID uuid.UUID) {
	if err := c.rdb.Del(ctx, cacheKey(patientID)).Err(); err != nil {
		c.logger.Warn("structured input cache invalidation failed", "error", err, "patient_id", patientID)
	}
}

// BuildCached returns the structured input for a patient, serving the
// cache on a hit and recomputing (then warming the cache) on a miss or any
// cache error. cache may be nil, in which case every call recomputes.
func BuildCached(ctx context.Context, cache *Cache, f Fetcher, patientID uuid.UUID) (StructuredInput, error) {
	if cache != nil {
		if in, ok := cache.Get(ctx, patientID); ok {
			return in, nil
		}
	}

	in, err := Build(ctx, f, patientID)
	if err != nil {
		return StructuredInput{}, err
	}

	if cache != nil {
		cache.Set(ctx, patientID, in)
	}
	return in, nil
}
