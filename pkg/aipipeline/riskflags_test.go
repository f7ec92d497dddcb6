package aipipeline

import (
	"testing"
	"time"

	"github.com/medibrief/api/pkg/analytics"
	"github.com/medibrief/api/pkg/clinical"
)

func vital(typ string, value float64, offset time.Duration) clinical.VitalRecord {
	v := value
	return clinical.VitalRecord{Type: typ, NumericValue: &v, RecordedAt: time.Unix(0, 0).Add(offset)}
}

func TestDeterministicRiskFlags_InsufficientHistory(t *testing.T) {
	vitals := []clinical.VitalRecord{
		vital(clinical.VitalBP, 120, 0),
		vital(clinical.VitalBP, 122, time.Hour),
	}
	flags := DeterministicRiskFlags(vitals, nil)
	if flags.HighBloodPressureTrend {
		t.Error("HighBloodPressureTrend should be false with fewer than 4 points")
	}
}

func TestDeterministicRiskFlags_FlagsSpike(t *testing.T) {
	var vitals []clinical.VitalRecord
	for i, v := range []float64{118, 120, 119, 121, 200} {
		vitals = append(vitals, vital(clinical.VitalBP, v, time.Duration(i)*time.Hour))
	}
	flags := DeterministicRiskFlags(vitals, nil)
	if !flags.HighBloodPressureTrend {
		t.Error("HighBloodPressureTrend should be true for a sharp spike")
	}
}

func TestDeterministicRiskFlags_WeightFlagsEitherDirection(t *testing.T) {
	var vitals []clinical.VitalRecord
	for i, v := range []float64{180, 181, 179, 180, 140} {
		vitals = append(vitals, vital(clinical.VitalWeight, v, time.Duration(i)*time.Hour))
	}
	flags := DeterministicRiskFlags(vitals, nil)
	if !flags.RapidWeightChange {
		t.Error("RapidWeightChange should be true for a sharp drop")
	}
}

func TestDeterministicRiskFlags_ConcerningSymptoms(t *testing.T) {
	flags := DeterministicRiskFlags(nil, []string{"mild headache", "chest pain radiating to arm"})
	if !flags.ConcerningSymptoms {
		t.Error("ConcerningSymptoms should be true when a recent symptom matches")
	}
}

func TestDeterministicRiskFlags_NoConcerningSymptoms(t *testing.T) {
	flags := DeterministicRiskFlags(nil, []string{"mild headache", "seasonal allergies"})
	if flags.ConcerningSymptoms {
		t.Error("ConcerningSymptoms should be false without a matching symptom")
	}
}

func TestAscendingSeries_SortsRegardlessOfInputOrder(t *testing.T) {
	vitals := []clinical.VitalRecord{
		vital(clinical.VitalGlucose, 130, 2*time.Hour),
		vital(clinical.VitalGlucose, 100, 0),
		vital(clinical.VitalGlucose, 115, time.Hour),
	}
	points := ascendingSeries(vitals, clinical.VitalGlucose)
	if len(points) != 3 || points[0].value != 100 || points[2].value != 130 {
		t.Fatalf("points not sorted ascending: %+v", points)
	}
}

func lab(numeric float64, refRange string) clinical.LabResult {
	n := numeric
	r := refRange
	return clinical.LabResult{NumericValue: &n, ReferenceRange: &r}
}

func TestComputeRiskAssessment_QuietHistoryIsLowTier(t *testing.T) {
	var vitals []clinical.VitalRecord
	for i, v := range []float64{118, 120, 119, 121, 120} {
		vitals = append(vitals, vital(clinical.VitalBP, v, time.Duration(i)*time.Hour))
	}
	labs := []clinical.LabResult{lab(5.0, "3.5-5.5")}

	assessment := ComputeRiskAssessment(vitals, labs, []string{"mild headache"})
	if assessment.Tier != analytics.RiskTierLow {
		t.Errorf("tier = %q, want %q", assessment.Tier, analytics.RiskTierLow)
	}
	if assessment.Score != 0 {
		t.Errorf("score = %d, want 0", assessment.Score)
	}
}

func TestComputeRiskAssessment_CombinesTrendLabAndSymptomSignals(t *testing.T) {
	var vitals []clinical.VitalRecord
	for i, v := range []float64{118, 120, 119, 121, 200} {
		vitals = append(vitals, vital(clinical.VitalBP, v, time.Duration(i)*time.Hour))
	}
	labs := []clinical.LabResult{lab(9.0, "3.5-5.5")}

	assessment := ComputeRiskAssessment(vitals, labs, []string{"chest pain radiating to arm"})
	if !assessment.HighBloodPressureTrend {
		t.Error("HighBloodPressureTrend should be true for a sharp spike")
	}
	if !assessment.ConcerningSymptoms {
		t.Error("ConcerningSymptoms should be true for a matching symptom")
	}
	if assessment.Score <= 0 {
		t.Errorf("score = %d, want > 0 given a BP trend, out-of-range lab, and concerning symptom", assessment.Score)
	}
	if assessment.Tier == analytics.RiskTierLow {
		t.Errorf("tier = %q, want higher than low given multiple risk signals", assessment.Tier)
	}
}

func TestComputeRiskAssessment_NilReferenceRangeDoesNotPanic(t *testing.T) {
	labs := []clinical.LabResult{{NumericValue: floatPtr(5.0)}}
	assessment := ComputeRiskAssessment(nil, labs, nil)
	if assessment.Tier == "" {
		t.Error("expected a non-empty tier")
	}
}

func floatPtr(f float64) *float64 { return &f }
