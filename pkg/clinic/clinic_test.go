package clinic

import (
	"testing"
	"time"
)

func TestClinicEffectiveAICallCount(t *testing.T) {
	tests := []struct {
		name               string
		billingPeriodStart time.Time
		aiCallCount        int
		now                time.Time
		want               int
	}{
		{
			name:               "same billing month",
			billingPeriodStart: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			aiCallCount:        42,
			now:                time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
			want:               42,
		},
		{
			name:               "rolled into a new month",
			billingPeriodStart: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			aiCallCount:        50,
			now:                time.Date(2026, 7, 1, 0, 0, 1, 0, time.UTC),
			want:               0,
		},
		{
			name:               "rolled into a new year",
			billingPeriodStart: time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC),
			aiCallCount:        10,
			now:                time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
			want:               0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Clinic{AICallCount: tt.aiCallCount, BillingPeriodStart: tt.billingPeriodStart}
			got := c.EffectiveAICallCount(tt.now)
			if got != tt.want {
				t.Errorf("EffectiveAICallCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMonthlyLimit(t *testing.T) {
	tests := []struct {
		plan string
		want int
	}{
		{"free", 50},
		{"Pro", 500},
		{"Enterprise", 5000},
		{"enterprise-plus", 5000},
		{"", 50},
	}

	for _, tt := range tests {
		t.Run(tt.plan, func(t *testing.T) {
			if got := MonthlyLimit(tt.plan); got != tt.want {
				t.Errorf("MonthlyLimit(%q) = %d, want %d", tt.plan, got, tt.want)
			}
		})
	}
}
