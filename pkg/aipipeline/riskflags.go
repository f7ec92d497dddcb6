package aipipeline

import (
	"math"
	"regexp"
	"sort"

	"github.com/medibrief/api/pkg/analytics"
	"github.com/medibrief/api/pkg/clinical"
)

// concerningSymptomPattern matches the same vocabulary as
// pkg/analytics.ComputeRiskScore's symptom contributor, reused here for
// the summary's standalone concerningSymptoms flag (spec.md §4.8).
var concerningSymptomPattern = regexp.MustCompile(`(?i)chest pain|dyspnea|fatigue|syncope|dizziness|palpitation|edema|blurred vision`)

// DeterministicRiskFlags derives the structured risk assessment persisted
// with every summary, independent of whether the LLM call succeeds
// (spec.md §4.8). vitals may be in any order; symptoms should be the
// caller's recent free-text symptom strings.
func DeterministicRiskFlags(vitals []clinical.VitalRecord, symptoms []string) RiskFlags {
	bp := ascendingSeries(vitals, clinical.VitalBP)
	glucose := ascendingSeries(vitals, clinical.VitalGlucose)
	hr := ascendingSeries(vitals, clinical.VitalHeartRate)
	weight := ascendingSeries(vitals, clinical.VitalWeight)

	flags := RiskFlags{
		HighBloodPressureTrend: latestZScore(bp) >= 2,
		RisingGlucoseTrend:     latestZScore(glucose) >= 2,
		TachycardiaTrend:       latestZScore(hr) >= 2,
		RapidWeightChange:      math.Abs(latestZScore(weight)) >= 2,
		ConcerningSymptoms:     matchesConcerningSymptom(symptoms),
	}
	return flags
}

// ComputeRiskAssessment builds the full RiskFlags — the four deterministic
// trend flags plus the composite score and tier (spec.md §4.5, §4.8) — from
// a patient's raw vitals, labs, and recent symptom text. It is the single
// source of truth behind both the AI_SUMMARY_GENERATE pipeline
// (Activities.ComputeRiskFlags) and the staff-facing analytics endpoint
// (pkg/insights.Service.Patient), so the two never disagree about a patient's risk.
func ComputeRiskAssessment(vitals []clinical.VitalRecord, labs []clinical.LabResult, symptoms []string) RiskFlags {
	flags := DeterministicRiskFlags(vitals, symptoms)

	anomalyCount := 0
	for _, t := range []string{clinical.VitalBP, clinical.VitalGlucose, clinical.VitalHeartRate, clinical.VitalWeight} {
		series := valuesOf(ascendingSeries(vitals, t))
		anomalyCount += len(analytics.ZScoreAnomalies(series, analytics.DefaultZThreshold))
	}

	labOutOfRange, labEvaluated := 0, 0
	for _, l := range labs {
		r := analytics.ParseReferenceRange(derefOr(l.ReferenceRange))
		switch analytics.FlagLab(l.NumericValue, r) {
		case analytics.LabStatusHigh, analytics.LabStatusLow:
			labOutOfRange++
			labEvaluated++
		case analytics.LabStatusNormal:
			labEvaluated++
		}
	}

	risk := analytics.ComputeRiskScore(anomalyCount, analytics.AIRiskFlags{
		HighBloodPressureTrend: flags.HighBloodPressureTrend,
		RisingGlucoseTrend:     flags.RisingGlucoseTrend,
		TachycardiaTrend:       flags.TachycardiaTrend,
		RapidWeightChange:      flags.RapidWeightChange,
	}, labOutOfRange, labEvaluated, symptoms)

	flags.Score = int(risk.Score)
	flags.Tier = risk.Tier
	return flags
}

func valuesOf(points []vitalPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.value
	}
	return out
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func matchesConcerningSymptom(symptoms []string) bool {
	for _, s := range symptoms {
		if concerningSymptomPattern.MatchString(s) {
			return true
		}
	}
	return false
}

// ascendingSeries filters a patient's vitals to one type's numeric values,
// oldest first, regardless of the input order.
func ascendingSeries(vitals []clinical.VitalRecord, vitalType string) []vitalPoint {
	var points []vitalPoint
	for _, v := range vitals {
		if v.Type != vitalType || v.NumericValue == nil {
			continue
		}
		value := *v.NumericValue
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		points = append(points, vitalPoint{recordedAt: v.RecordedAt.UnixNano(), value: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].recordedAt < points[j].recordedAt })
	return points
}

type vitalPoint struct {
	recordedAt int64
	value      float64
}

// latestZScore computes the z-score of the most recent point against the
// mean/stddev of the points before it (the "prior baseline", spec.md
// §4.8). Returns 0 if there are fewer than 3 prior points or they have
// zero variance, so a flag never fires on insufficient history.
func latestZScore(points []vitalPoint) float64 {
	if len(points) < 4 {
		return 0
	}
	prior := points[:len(points)-1]
	latest := points[len(points)-1].value

	var sum float64
	for _, p := range prior {
		sum += p.value
	}
	mean := sum / float64(len(prior))

	var variance float64
	for _, p := range prior {
		d := p.value - mean
		variance += d * d
	}
	variance /= float64(len(prior))
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		return 0
	}
	return (latest - mean) / sigma
}
