package audit

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func TestScrub_RedactsEmail(t *testing.T) {
	in := "updated patient contact to jane.doe@example.com"
	got := Scrub(in)
	if got != "updated patient contact to [REDACTED]" {
		t.Errorf("Scrub(%q) = %q", in, got)
	}
}

func TestScrub_RedactsUUID(t *testing.T) {
	in := "linked record 3fa85f64-5717-4562-b3fc-2c963f66afa6 to encounter"
	got := Scrub(in)
	if got != "linked record [REDACTED] to encounter" {
		t.Errorf("Scrub(%q) = %q", in, got)
	}
}

func TestScrub_RedactsPhone(t *testing.T) {
	in := "called patient at 555-867-5309 about results"
	got := Scrub(in)
	if got != "called patient at [REDACTED] about results" {
		t.Errorf("Scrub(%q) = %q", in, got)
	}
}

func TestScrub_LeavesPlainActionAlone(t *testing.T) {
	in := "created vitals record"
	if got := Scrub(in); got != in {
		t.Errorf("Scrub(%q) = %q, want unchanged", in, got)
	}
}

func TestLog_ScrubsBeforeEnqueue(t *testing.T) {
	w := NewWriter(nil, slog.Default())
	w.Log(Entry{Action: "registered admin@clinic.example", EntityType: "clinic"})

	entry := <-w.entries
	if entry.Action != "registered [REDACTED]" {
		t.Errorf("Action = %q, want scrubbed", entry.Action)
	}
}

func TestLog_DropsWhenFull(t *testing.T) {
	w := NewWriter(nil, slog.Default())
	// Don't start the background goroutine — nothing drains the channel.

	for i := 0; i < bufferSize; i++ {
		w.Log(Entry{Action: "test", EntityType: "test", EntityID: uuid.New()})
	}

	// The next log should be dropped (non-blocking), not deadlock the test.
	w.Log(Entry{Action: "dropped", EntityType: "test", EntityID: uuid.New()})

	if len(w.entries) != bufferSize {
		t.Errorf("buffer size = %d, want %d", len(w.entries), bufferSize)
	}
}
