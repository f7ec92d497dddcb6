package insights

import (
	"testing"

	"github.com/medibrief/api/pkg/analytics"
)

func TestNewTrend_CopiesAnomaliesByIndex(t *testing.T) {
	src := analytics.Trend{
		Metric: "BP",
		Points: []float64{118, 120, 200},
		Latest: 200,
		Delta:  82,
		Anomalies: []analytics.Anomaly{
			{Index: 2, Value: 200, Z: 3.1},
		},
	}

	got := newTrend(src)
	if got.Metric != "BP" || got.Latest != 200 || got.Delta != 82 {
		t.Fatalf("unexpected trend: %+v", got)
	}
	if len(got.Anomalies) != 1 || got.Anomalies[0].Index != 2 || got.Anomalies[0].Value != 200 {
		t.Fatalf("anomalies not copied correctly: %+v", got.Anomalies)
	}
}

func TestNewTrend_NoAnomaliesYieldsEmptySlice(t *testing.T) {
	got := newTrend(analytics.Trend{Metric: "WEIGHT"})
	if len(got.Anomalies) != 0 {
		t.Fatalf("len = %d, want 0", len(got.Anomalies))
	}
}

func TestDerefOr_NilReturnsEmptyString(t *testing.T) {
	if got := derefOr(nil); got != "" {
		t.Errorf("derefOr(nil) = %q, want empty string", got)
	}
}

func TestDerefOr_ReturnsPointedValue(t *testing.T) {
	s := "3.5-5.5"
	if got := derefOr(&s); got != s {
		t.Errorf("derefOr(&s) = %q, want %q", got, s)
	}
}
