package insights

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/auth"
	"github.com/medibrief/api/internal/httpserver"
	"github.com/medibrief/api/internal/tenant"
	"github.com/medibrief/api/pkg/aipipeline"
	"github.com/medibrief/api/pkg/clinical"
	"github.com/medibrief/api/pkg/patient"
)

// Handler provides the staff analytics HTTP surface (spec.md §4.5). Both
// routes require staff (ADMIN or DOCTOR). Holds no tenant-scoped state:
// each request builds a fresh Service from its own tenant-bound connection.
type Handler struct{}

// NewHandler creates an insights Handler.
func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) service(r *http.Request) *Service {
	conn := tenant.ConnFromContext(r.Context())
	return NewService(patient.NewStore(conn), clinical.NewStore(conn), aipipeline.NewStore(conn))
}

// Routes mounts GET /patient/:patientId and GET /clinic-risk.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))

	r.Get("/patient/{patientId}", h.handlePatient)
	r.Get("/clinic-risk", h.handleClinicRisk)
	return r
}

func (h *Handler) handlePatient(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "patientId"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	result, err := h.service(r).Patient(r.Context(), id)
	if err != nil {
		apperror.Respond(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

func (h *Handler) handleClinicRisk(w http.ResponseWriter, r *http.Request) {
	result, err := h.service(r).ClinicRisk(r.Context())
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "computing clinic risk", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}
