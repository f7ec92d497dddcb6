package analytics

import (
	"math"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestZScoreAnomalies_TooFewPoints(t *testing.T) {
	if got := ZScoreAnomalies([]float64{1, 2}, DefaultZThreshold); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestZScoreAnomalies_ZeroVariance(t *testing.T) {
	series := []float64{5, 5, 5, 5}
	if got := ZScoreAnomalies(series, DefaultZThreshold); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestZScoreAnomalies_FlagsOutliers(t *testing.T) {
	series := []float64{10, 11, 9, 10, 50}
	got := ZScoreAnomalies(series, DefaultZThreshold)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %+v", len(got), got)
	}
	if got[0].Index != 4 {
		t.Errorf("Index = %d, want 4", got[0].Index)
	}
}

func TestBuildTrend_SinglePointDeltaZero(t *testing.T) {
	tr := BuildTrend("WEIGHT", []VitalPoint{{NumericValue: f64(70)}})
	if tr.Delta != 0 {
		t.Errorf("Delta = %v, want 0", tr.Delta)
	}
	if tr.Latest != 70 {
		t.Errorf("Latest = %v, want 70", tr.Latest)
	}
}

func TestBuildTrend_SkipsNilAndNonFinite(t *testing.T) {
	inf := math.Inf(1)
	tr := BuildTrend("BP", []VitalPoint{
		{NumericValue: f64(120)},
		{NumericValue: nil},
		{NumericValue: &inf},
		{NumericValue: f64(130)},
	})
	if len(tr.Points) != 2 {
		t.Fatalf("Points = %v, want len 2", tr.Points)
	}
	if tr.Delta != 10 {
		t.Errorf("Delta = %v, want 10", tr.Delta)
	}
}

func TestParseReferenceRange(t *testing.T) {
	tests := []struct {
		input    string
		wantLow  *float64
		wantHigh *float64
	}{
		{"70-100", f64(70), f64(100)},
		{"70 – 100", f64(70), f64(100)},
		{"< 5.5", nil, f64(5.5)},
		{"≤ 5.5", nil, f64(5.5)},
		{"> 3", f64(3), nil},
		{"≥ 3", f64(3), nil},
		{"garbage", nil, nil},
		{"", nil, nil},
	}

	for _, tt := range tests {
		got := ParseReferenceRange(tt.input)
		if !floatPtrEqual(got.Low, tt.wantLow) || !floatPtrEqual(got.High, tt.wantHigh) {
			t.Errorf("ParseReferenceRange(%q) = {%v, %v}, want {%v, %v}",
				tt.input, deref(got.Low), deref(got.High), deref(tt.wantLow), deref(tt.wantHigh))
		}
	}
}

func TestFlagLab(t *testing.T) {
	r := ReferenceRange{Low: f64(70), High: f64(100)}
	tests := []struct {
		value *float64
		r     ReferenceRange
		want  string
	}{
		{f64(150), r, LabStatusHigh},
		{f64(50), r, LabStatusLow},
		{f64(85), r, LabStatusNormal},
		{nil, r, LabStatusUnknown},
		{f64(85), ReferenceRange{}, LabStatusUnknown},
	}
	for _, tt := range tests {
		if got := FlagLab(tt.value, tt.r); got != tt.want {
			t.Errorf("FlagLab(%v, %+v) = %q, want %q", deref(tt.value), tt.r, got, tt.want)
		}
	}
}

func TestComputeRiskScore_Tiers(t *testing.T) {
	tests := []struct {
		name       string
		anomalies  int
		flags      AIRiskFlags
		outOfRange int
		evaluated  int
		symptoms   []string
		wantTier   string
	}{
		{"all clear", 0, AIRiskFlags{}, 0, 0, nil, RiskTierLow},
		{"max everything", 10, AIRiskFlags{true, true, true, true}, 10, 10, []string{"chest pain", "syncope"}, RiskTierCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRiskScore(tt.anomalies, tt.flags, tt.outOfRange, tt.evaluated, tt.symptoms)
			if got.Tier != tt.wantTier {
				t.Errorf("Tier = %q, want %q (score %v)", got.Tier, tt.wantTier, got.Score)
			}
			if len(got.Contributors) != 4 {
				t.Errorf("len(Contributors) = %d, want 4", len(got.Contributors))
			}
		})
	}
}

func TestComputeRiskScore_NoLabsEvaluatedYieldsZeroSubscore(t *testing.T) {
	got := ComputeRiskScore(0, AIRiskFlags{}, 0, 0, nil)
	for _, c := range got.Contributors {
		if c.Source == "lab_out_of_range" && c.Subscore != 0 {
			t.Errorf("lab_out_of_range subscore = %v, want 0", c.Subscore)
		}
	}
}

func floatPtrEqual(a, b *float64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return *a == *b
}

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

