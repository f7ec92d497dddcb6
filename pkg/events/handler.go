package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/auth"
)

const (
	heartbeatInterval = 15 * time.Second
	streamCap         = 2 * time.Minute
)

// Handler serves the AI pipeline's push-stream endpoint (spec.md §4.9).
type Handler struct {
	bus        *Bus
	sessionMgr *auth.SessionManager
	logger     *slog.Logger
}

// NewHandler creates a push-stream Handler.
func NewHandler(bus *Bus, sessionMgr *auth.SessionManager, logger *slog.Logger) *Handler {
	return &Handler{bus: bus, sessionMgr: sessionMgr, logger: logger}
}

// Routes mounts GET /stream/:jobId. Callers typically mount this router at
// /ai, alongside pkg/aipipeline.Handler's routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stream/{jobId}", h.handleStream)
	return r
}

// handleStream implements spec.md §4.9's six-step sequence. It does not run
// behind auth.Middleware/RequireRole: the push-stream endpoint is the one
// place a query-string token is accepted (spec.md §4.1/§6), so it verifies
// the token itself rather than relying on the header-based chain.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	// Step 1: verify the token.
	id, err := h.authenticate(r)
	if err != nil {
		apperror.Respond(w, err)
		return
	}
	if id.Role != auth.RoleAdmin && id.Role != auth.RoleDoctor {
		apperror.Respond(w, apperror.New(apperror.KindForbidden, "insufficient permissions"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		apperror.Respond(w, apperror.New(apperror.KindInternal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Step 2: current state. If terminal, emit once and stop.
	status, ok := h.bus.Get(r.Context(), jobID)
	if ok && isTerminal(status.State) {
		writeFrame(w, status)
		flusher.Flush()
		return
	}

	// Step 3: emit the current non-terminal state (if any), then subscribe.
	if ok {
		writeFrame(w, status)
		flusher.Flush()
	}

	sub := h.bus.Subscribe(r.Context(), jobID)
	defer sub.Close()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	capTimer := time.NewTimer(streamCap)
	defer capTimer.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Step 6: client disconnect.
			return

		case <-capTimer.C:
			// Step 5: hard 2-minute wall clock.
			writeFrame(w, JobStatus{JobID: jobID, State: "timeout"})
			flusher.Flush()
			return

		case <-heartbeat.C:
			// Step 4: heartbeat comment.
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case msg, chOpen := <-sub.Channel():
			if !chOpen {
				return
			}
			var next JobStatus
			if err := json.Unmarshal([]byte(msg.Payload), &next); err != nil {
				h.logger.Warn("decoding job event", "error", err, "job_id", jobID)
				continue
			}
			writeFrame(w, next)
			flusher.Flush()
			if isTerminal(next.State) {
				// Step 6: terminal event.
				return
			}
		}
	}
}

// authenticate verifies the session token, preferring the query-string
// ?token= the push-stream endpoint alone accepts over the Authorization
// header (spec.md §6).
func (h *Handler) authenticate(r *http.Request) (*auth.Identity, error) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		const prefix = "Bearer "
		authHeader := r.Header.Get("Authorization")
		if len(authHeader) > len(prefix) {
			raw = authHeader[len(prefix):]
		}
	}
	if raw == "" {
		return nil, apperror.New(apperror.KindUnauthenticated, "missing token")
	}

	claims, err := h.sessionMgr.ValidateToken(raw)
	if err != nil {
		return nil, apperror.New(apperror.KindUnauthenticated, "invalid or expired token")
	}

	return auth.IdentityFromClaims(claims)
}

func writeFrame(w http.ResponseWriter, status JobStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
