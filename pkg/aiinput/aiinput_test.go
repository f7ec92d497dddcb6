package aiinput

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/medibrief/api/pkg/clinical"
)

type fakeFetcher struct {
	age      int
	vitals   []clinical.VitalRecord
	labs     []clinical.LabResult
	symptoms []string
}

func (f *fakeFetcher) ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]clinical.VitalRecord, error) {
	if len(f.vitals) > limit {
		return f.vitals[:limit], nil
	}
	return f.vitals, nil
}

func (f *fakeFetcher) ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]clinical.LabResult, error) {
	if len(f.labs) > limit {
		return f.labs[:limit], nil
	}
	return f.labs, nil
}

func (f *fakeFetcher) ListRecentConsultationSymptoms(ctx context.Context, patientID uuid.UUID, limit int) ([]string, error) {
	if len(f.symptoms) > limit {
		return f.symptoms[:limit], nil
	}
	return f.symptoms, nil
}

func (f *fakeFetcher) PatientAge(ctx context.Context, patientID uuid.UUID) (int, error) {
	return f.age, nil
}

func fv(t string, v float64) clinical.VitalRecord {
	return clinical.VitalRecord{Type: t, NumericValue: &v}
}

func TestBuild_ProjectsTrendsAndCaps(t *testing.T) {
	f := &fakeFetcher{
		age: 54,
		vitals: []clinical.VitalRecord{
			fv(clinical.VitalBP, 140), fv(clinical.VitalGlucose, 110),
			fv(clinical.VitalBP, 138), fv(clinical.VitalHeartRate, 88),
			fv(clinical.VitalWeight, 180),
		},
		labs: []clinical.LabResult{
			{TestName: "A1C", Value: "6.1"},
			{TestName: "LDL", Value: "130"},
		},
		symptoms: []string{"chest pain", "fatigue", "dizziness", "syncope", "edema", "palpitations"},
	}

	in, err := Build(context.Background(), f, uuid.New())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if in.Age != 54 {
		t.Errorf("Age = %d, want 54", in.Age)
	}
	if len(in.BPTrend) != 2 || in.BPTrend[0] != 140 {
		t.Errorf("BPTrend = %v, want [140 138]", in.BPTrend)
	}
	if len(in.GlucoseTrend) != 1 {
		t.Errorf("GlucoseTrend = %v, want len 1", in.GlucoseTrend)
	}
	if len(in.RecentSymptoms) != maxSymptoms {
		t.Errorf("len(RecentSymptoms) = %d, want %d (capped)", len(in.RecentSymptoms), maxSymptoms)
	}
	if len(in.RecentLabValues) != 2 || in.RecentLabValues[0] != "A1C: 6.1" {
		t.Errorf("RecentLabValues = %v", in.RecentLabValues)
	}
}

func TestBuild_SkipsNonNumericVitals(t *testing.T) {
	f := &fakeFetcher{
		vitals: []clinical.VitalRecord{
			{Type: clinical.VitalBP, NumericValue: nil},
		},
	}
	in, err := Build(context.Background(), f, uuid.New())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(in.BPTrend) != 0 {
		t.Errorf("BPTrend = %v, want empty", in.BPTrend)
	}
}
