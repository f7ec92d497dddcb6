// Package insights implements the staff-facing analytics surface
// (spec.md §4.5, `GET /analytics/patient/:patientId` and
// `GET /analytics/clinic-risk`): per-patient vital trends, flagged labs,
// and composite risk, plus a clinic-wide high-risk roll-up built from each
// patient's latest AI summary. It is a thin assembly layer over
// pkg/clinical, pkg/patient, and pkg/aipipeline's already-computed
// primitives — it owns no SQL of its own.
package insights

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/api/pkg/aipipeline"
	"github.com/medibrief/api/pkg/clinical"
)

// LabView pairs a lab result with its flagged status (spec.md §4.5).
type LabView struct {
	clinical.LabResult
	Status string `json:"status"`
}

// PatientAnalytics is the response body for GET /analytics/patient/:patientId.
type PatientAnalytics struct {
	Trends map[string]Trend     `json:"trends"`
	Labs   []LabView            `json:"labs"`
	Risk   aipipeline.RiskFlags `json:"risk"`
}

// Trend mirrors pkg/analytics.Trend; redeclared here with the JSON shape
// this endpoint promises (spec.md §4.5's trends table), independent of
// whatever internal representation pkg/analytics evolves to.
type Trend struct {
	Metric    string        `json:"metric"`
	Points    []float64     `json:"points"`
	Latest    float64       `json:"latest"`
	Delta     float64       `json:"delta"`
	Anomalies []AnomalyView `json:"anomalies"`
}

// AnomalyView mirrors pkg/analytics.Anomaly.
type AnomalyView struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	Z     float64 `json:"z"`
}

// ClinicRiskEntry is one row of the GET /analytics/clinic-risk roll-up.
type ClinicRiskEntry struct {
	PatientID   uuid.UUID            `json:"patientId"`
	PatientName string               `json:"patientName"`
	SummaryID   uuid.UUID            `json:"summaryId"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Risk        aipipeline.RiskFlags `json:"risk"`
}
