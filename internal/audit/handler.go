package audit

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibrief/api/internal/auth"
	"github.com/medibrief/api/internal/httpserver"
	"github.com/medibrief/api/internal/tenant"
)

// Record is a single row returned by the audit log listing endpoint.
type Record struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Handler serves the ADMIN-only audit log listing endpoint (spec.md §6,
// GET /audit).
type Handler struct{}

// NewHandler creates an audit log Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Routes returns a chi.Router with audit log routes mounted. Callers must
// wrap it in auth.RequireRole(auth.RoleAdmin).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	id := auth.FromContext(r.Context())
	conn := tenant.ConnFromContext(r.Context())

	q := r.URL.Query()
	action := q.Get("action")
	entityType := q.Get("entityType")
	userIDParam := q.Get("userId")

	const base = `
		SELECT id, user_id, action, entity_type, entity_id, created_at
		FROM audit_log
		WHERE clinic_id = $1
		  AND ($2 = '' OR action = $2)
		  AND ($3 = '' OR entity_type = $3)
		  AND ($4 = '00000000-0000-0000-0000-000000000000'::uuid OR user_id = $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`

	var userIDFilter uuid.UUID
	if userIDParam != "" {
		parsed, err := uuid.Parse(userIDParam)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid userId")
			return
		}
		userIDFilter = parsed
	}

	rows, err := conn.Query(r.Context(), base, id.ClinicID, action, entityType, userIDFilter, params.PageSize, params.Offset)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}
	defer rows.Close()

	records := make([]Record, 0, params.PageSize)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Action, &rec.EntityType, &rec.EntityID, &rec.CreatedAt); err != nil {
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to scan audit log row")
			return
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}

	httpserver.Respond(w, http.StatusOK, records)
}
