package clinical

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/audit"
	"github.com/medibrief/api/internal/auth"
	"github.com/medibrief/api/internal/httpserver"
	"github.com/medibrief/api/internal/tenant"
)

// Handler provides HTTP handlers for vitals, labs, and consultations, each
// mounted at its own stable top-level prefix (spec.md §6:
// `POST /vitals`/`GET /vitals/:patientId`, `/labs`, `/consultations`). All
// routes require staff (ADMIN or DOCTOR). Like pkg/patient.Handler, it holds
// no tenant-scoped Store: each request builds one from its own tenant-bound
// connection.
type Handler struct {
	cache Invalidator
	audit *audit.Writer
}

// NewHandler creates a clinical Handler. cache may be nil.
func NewHandler(cache Invalidator, audit *audit.Writer) *Handler {
	return &Handler{cache: cache, audit: audit}
}

func (h *Handler) service(r *http.Request) *Service {
	conn := tenant.ConnFromContext(r.Context())
	return NewService(NewStore(conn), h.cache)
}

// VitalsRoutes returns the /vitals router: create takes the patient id in
// the body, list and delete take it as a path segment.
func (h *Handler) VitalsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	r.Post("/", h.handleCreateVital)
	r.Get("/{patientId}", h.handleListVitals)
	r.Delete("/{patientId}/{vitalId}", h.handleDeleteVital)
	return r
}

// LabsRoutes returns the /labs router, mirroring VitalsRoutes' shape.
func (h *Handler) LabsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	r.Post("/", h.handleCreateLab)
	r.Get("/{patientId}", h.handleListLabs)
	r.Delete("/{patientId}/{labId}", h.handleDeleteLab)
	return r
}

// ConsultationsRoutes returns the /consultations router. List additionally
// accepts `?cursor&limit` (spec.md §6).
func (h *Handler) ConsultationsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	r.Post("/", h.handleCreateConsultation)
	r.Get("/{patientId}", h.handleListConsultations)
	r.Delete("/{patientId}/{consultationId}", h.handleDeleteConsultation)
	return r
}

// patientIDParam reads the patient id from the "patientId" path segment
// (list/delete routes).
func patientIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "patientId"))
}

func (h *Handler) handleCreateVital(w http.ResponseWriter, r *http.Request) {
	var req CreateVitalRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	v, err := h.service(r).CreateVital(r.Context(), req.PatientID, req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "create vital record", v.ID)
	httpserver.Respond(w, http.StatusCreated, v)
}

func (h *Handler) handleListVitals(w http.ResponseWriter, r *http.Request) {
	pid, err := patientIDParam(r)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	items, err := h.service(r).ListVitals(r.Context(), pid, 100)
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "listing vitals", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, items)
}

func (h *Handler) handleDeleteVital(w http.ResponseWriter, r *http.Request) {
	pid, err := patientIDParam(r)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "vitalId"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid vital id"))
		return
	}

	if err := h.service(r).DeleteVital(r.Context(), pid, id); err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "delete vital record", id)
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleCreateLab(w http.ResponseWriter, r *http.Request) {
	var req CreateLabRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	l, err := h.service(r).CreateLab(r.Context(), req.PatientID, req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "create lab result", l.ID)
	httpserver.Respond(w, http.StatusCreated, l)
}

func (h *Handler) handleListLabs(w http.ResponseWriter, r *http.Request) {
	pid, err := patientIDParam(r)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	items, err := h.service(r).ListLabs(r.Context(), pid, 100)
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "listing labs", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, items)
}

func (h *Handler) handleDeleteLab(w http.ResponseWriter, r *http.Request) {
	pid, err := patientIDParam(r)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "labId"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid lab id"))
		return
	}

	if err := h.service(r).DeleteLab(r.Context(), pid, id); err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "delete lab result", id)
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleCreateConsultation(w http.ResponseWriter, r *http.Request) {
	var req CreateConsultationRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	c, err := h.service(r).CreateConsultation(r.Context(), req.PatientID, id.UserID, req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "create consultation", c.ID)
	httpserver.Respond(w, http.StatusCreated, c)
}

func (h *Handler) handleListConsultations(w http.ResponseWriter, r *http.Request) {
	pid, err := patientIDParam(r)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

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

	page, err := h.service(r).ListConsultations(r.Context(), pid, after, limit)
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "listing consultations", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) handleDeleteConsultation(w http.ResponseWriter, r *http.Request) {
	pid, err := patientIDParam(r)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "consultationId"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid consultation id"))
		return
	}

	if err := h.service(r).DeleteConsultation(r.Context(), pid, id); err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "delete consultation", id)
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) logAudit(r *http.Request, action string, entityID uuid.UUID) {
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
		EntityType: "clinical_record",
		EntityID:   entityID,
	})
}
