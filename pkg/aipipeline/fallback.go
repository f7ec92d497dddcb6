package aipipeline

import (
	"fmt"
	"strings"

	"github.com/medibrief/api/pkg/aiinput"
)

// RenderFallback produces a deterministic structured summary when no LLM
// provider is configured or the LLM call fails (spec.md §4.8). It covers
// the same enumerated sections the LLM is prompted to produce, built
// directly from the trends, labs, symptoms, and risk flags rather than
// free-form prose.
func RenderFallback(in aiinput.StructuredInput, ageBand string, flags RiskFlags) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Clinical Overview\nPatient in age band %s. This summary was generated without LLM assistance and reflects only structured trend and flag analysis.\n\n", ageBand)

	b.WriteString("Vital Sign Trends\n")
	writeTrendLine(&b, "Blood pressure", in.BPTrend)
	writeTrendLine(&b, "Glucose", in.GlucoseTrend)
	writeTrendLine(&b, "Heart rate", in.HeartRateTrend)
	writeTrendLine(&b, "Weight", in.WeightTrend)
	b.WriteString("\n")

	b.WriteString("Laboratory Findings\n")
	if len(in.RecentLabValues) == 0 {
		b.WriteString("No recent lab results on file.\n\n")
	} else {
		for _, v := range in.RecentLabValues {
			fmt.Fprintf(&b, "- %s\n", v)
		}
		b.WriteString("\n")
	}

	b.WriteString("Symptom Analysis\n")
	if len(in.RecentSymptoms) == 0 {
		b.WriteString("No recent symptom notes on file.\n\n")
	} else {
		for _, s := range in.RecentSymptoms {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Risk Assessment\nHigh blood pressure trend: %t. Rising glucose trend: %t. Tachycardia trend: %t. Rapid weight change: %t. Concerning symptoms noted: %t.\n\n",
		flags.HighBloodPressureTrend, flags.RisingGlucoseTrend, flags.TachycardiaTrend, flags.RapidWeightChange, flags.ConcerningSymptoms)

	b.WriteString("Recommended Monitoring\nContinue routine vital and lab monitoring per clinic protocol. Escalate to a clinician review if any flagged trend persists or worsens.\n\n")

	fmt.Fprintf(&b, "Disclaimer\n%s\n", Disclaimer)

	return b.String()
}

func writeTrendLine(b *strings.Builder, label string, points []float64) {
	if len(points) == 0 {
		fmt.Fprintf(b, "%s: no data.\n", label)
		return
	}
	fmt.Fprintf(b, "%s: %d recent readings, most recent %.1f.\n", label, len(points), points[0])
}
