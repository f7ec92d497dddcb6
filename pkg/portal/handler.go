package portal

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/audit"
	"github.com/medibrief/api/internal/auth"
	"github.com/medibrief/api/internal/httpserver"
	"github.com/medibrief/api/internal/tenant"
	"github.com/medibrief/api/pkg/aipipeline"
	"github.com/medibrief/api/pkg/clinical"
	"github.com/medibrief/api/pkg/patient"
)

// Handler exposes the patient portal routes under /portal. Every route
// requires a PATIENT-role token and is implicitly scoped to the caller's
// own patientId (spec.md §4.10). It holds no tenant-scoped state: each
// request builds a fresh Service from its own tenant-bound connection.
type Handler struct {
	bcryptCost int
	audit      *audit.Writer
}

// NewHandler creates a portal Handler.
func NewHandler(bcryptCost int, audit *audit.Writer) *Handler {
	return &Handler{bcryptCost: bcryptCost, audit: audit}
}

func (h *Handler) service(r *http.Request) *Service {
	conn := tenant.ConnFromContext(r.Context())
	return NewService(patient.NewStore(conn), clinical.NewStore(conn), aipipeline.NewStore(conn), h.bcryptCost)
}

// Routes mounts the portal endpoints, gated to PATIENT.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RolePatient))

	r.Get("/me", h.handleGetProfile)
	r.Put("/me", h.handleUpdateProfile)
	r.Put("/security", h.handleUpdateSecurity)
	r.Get("/vitals", h.handleVitals)
	r.Get("/labs", h.handleLabs)
	r.Get("/analytics", h.handleAnalytics)
	r.Get("/appointments", h.handleAppointments)
	r.Get("/summaries", h.handleSummaries)

	return r
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service(r).Profile(r.Context(), patientID(r))
	if err != nil {
		apperror.Respond(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	profile, err := h.service(r).UpdateProfile(r.Context(), patientID(r), req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "update portal profile")
	httpserver.Respond(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateSecurity(w http.ResponseWriter, r *http.Request) {
	var req UpdateSecurityRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service(r).UpdateSecurity(r.Context(), patientID(r), req); err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "rotate portal password")
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleVitals(w http.ResponseWriter, r *http.Request) {
	vitals, err := h.service(r).Vitals(r.Context(), patientID(r))
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "listing vitals", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, vitals)
}

func (h *Handler) handleLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := h.service(r).Labs(r.Context(), patientID(r))
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "listing labs", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, labs)
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	result, err := h.service(r).Analytics(r.Context(), patientID(r))
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "computing analytics", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

func (h *Handler) handleAppointments(w http.ResponseWriter, r *http.Request) {
	var after *uuid.UUID
	if v := r.URL.Query().Get("cursor"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid cursor"))
			return
		}
		after = &id
	}

	limit, err := httpserver.ParseLimitParam(r)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, err.Error()))
		return
	}

	appointments, err := h.service(r).Appointments(r.Context(), patientID(r), after, limit)
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "listing appointments", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, appointments)
}

func (h *Handler) handleSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service(r).Summaries(r.Context(), patientID(r))
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "listing summaries", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, summaries)
}

// patientID extracts the caller's own patient id. Every portal route runs
// behind auth.RequireRole(auth.RolePatient), so the identity's UserID is
// always the patient id (spec.md §4.1).
func patientID(r *http.Request) uuid.UUID {
	return auth.FromContext(r.Context()).UserID
}

func (h *Handler) logAudit(r *http.Request, action string) {
	if h.audit == nil {
		return
	}
	id := auth.FromContext(r.Context())
	info := tenant.FromContext(r.Context())
	if id == nil || info == nil {
		return
	}
	h.audit.Log(audit.Entry{
		ClinicID:   info.ClinicID,
		UserID:     id.UserID,
		Action:     action,
		EntityType: "patient",
		EntityID:   id.UserID,
	})
}
