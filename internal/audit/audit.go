package audit

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry represents a single audit log entry to be written (spec.md §4.3).
// Action is free text and must be scrubbed of PHI before it reaches Log;
// EntityID is the only field permitted to carry an identifier, and only
// because it is itself opaque (a UUID, never a name/email/phone).
type Entry struct {
	ClinicID   uuid.UUID
	UserID     uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
}

// Writer is an async, buffered audit log writer. Entries are sent to an
// internal channel and flushed by a background goroutine so that no request
// handler blocks on an audit write.
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// NewWriter creates an audit Writer. Call Start to begin processing entries.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start begins the background goroutine that flushes audit entries to the
// database and returns immediately. The goroutine flushes what is buffered
// and exits when the context is cancelled or Close is called.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log scrubs the entry's Action text and enqueues it for async writing. It
// never blocks the caller; if the buffer is full the entry is dropped and a
// warning is logged rather than stalling the request that produced it.
func (w *Writer) Log(entry Entry) {
	entry.Action = Scrub(entry.Action)

	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"action", entry.Action, "entity_type", entry.EntityType)
	}
}

var (
	uuidPattern  = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d().\-\s]{7,}\d`)
)

// Scrub removes patterns matching 128-bit identifiers, email addresses, and
// phone numbers from s, replacing each with "[REDACTED]" (spec.md §4.3).
// EntityID is never passed through Scrub: it is stored as its own opaque
// column, never embedded in Action text.
func Scrub(s string) string {
	s = uuidPattern.ReplaceAllString(s, "[REDACTED]")
	s = emailPattern.ReplaceAllString(s, "[REDACTED]")
	s = phonePattern.ReplaceAllString(s, "[REDACTED]")
	return s
}

// run is the background loop that drains the entries channel.
func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush writes a batch of entries to the database. Each entry carries its
// own clinic id, so the writer binds app.clinic_id per statement on a
// connection acquired fresh from the unscoped pool rather than relying on
// tenant.Middleware's request-scoped connection, which has already been
// released by the time this goroutine runs.
func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		w.logger.Error("acquiring connection for audit flush", "error", err)
		return
	}
	defer conn.Release()

	for _, e := range entries {
		if _, err := conn.Exec(ctx, `SELECT set_config('app.clinic_id', $1, false)`, e.ClinicID.String()); err != nil {
			w.logger.Error("binding clinic for audit flush", "error", err, "clinic_id", e.ClinicID)
			continue
		}

		const q = `
			INSERT INTO audit_log (id, clinic_id, user_id, action, entity_type, entity_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())`
		if _, err := conn.Exec(ctx, q, uuid.New(), e.ClinicID, e.UserID, e.Action, e.EntityType, e.EntityID); err != nil {
			w.logger.Error("writing audit log entry", "error", err,
				"action", e.Action, "entity_type", e.EntityType)
		}
	}
}
