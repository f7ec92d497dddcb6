package aipipeline

import (
	"strings"
	"testing"

	"github.com/medibrief/api/pkg/aiinput"
)

func TestRenderFallback_IncludesAllSections(t *testing.T) {
	in := aiinput.StructuredInput{
		BPTrend:         []float64{140, 138},
		RecentSymptoms:  []string{"chest pain"},
		RecentLabValues: []string{"A1C: 6.1"},
	}
	flags := RiskFlags{HighBloodPressureTrend: true}

	text := RenderFallback(in, "50-54", flags)

	for _, section := range []string{
		"Clinical Overview", "Vital Sign Trends", "Laboratory Findings",
		"Symptom Analysis", "Risk Assessment", "Recommended Monitoring", "Disclaimer",
	} {
		if !strings.Contains(text, section) {
			t.Errorf("fallback summary missing section %q", section)
		}
	}
	if !strings.Contains(text, Disclaimer) {
		t.Error("fallback summary missing the fixed disclaimer text")
	}
}

func TestRenderFallback_HandlesEmptyData(t *testing.T) {
	text := RenderFallback(aiinput.StructuredInput{}, "unknown", RiskFlags{})
	if !strings.Contains(text, "No recent lab results on file.") {
		t.Error("expected empty-labs placeholder text")
	}
	if !strings.Contains(text, "No recent symptom notes on file.") {
		t.Error("expected empty-symptoms placeholder text")
	}
}
