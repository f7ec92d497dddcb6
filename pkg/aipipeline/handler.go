package aipipeline

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/auth"
	"github.com/medibrief/api/internal/httpserver"
	"github.com/medibrief/api/internal/tenant"
	"github.com/medibrief/api/pkg/aiinput"
	"github.com/medibrief/api/pkg/clinical"
	"github.com/medibrief/api/pkg/patient"
)

// Handler exposes the staff-facing AI pipeline endpoints: enqueue, job
// status, summary reads, and synchronous chat (spec.md §4.11). The SSE
// push-stream endpoint lives in pkg/events, mounted separately since it
// needs a longer-lived handler shape.
type Handler struct {
	svc *Service
}

// NewHandler creates an aipipeline Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the staff-only AI pipeline endpoints under /ai.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))

	r.Post("/generate-summary/{patientId}", h.handleGenerate)
	r.Get("/jobs/{jobId}", h.handleJobStatus)
	r.Get("/summaries/patient/{patientId}", h.handleListSummaries)
	r.Get("/summaries/{summaryId}", h.handleGetSummary)
	r.Post("/chat/{patientId}", h.handleChat)

	return r
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientId"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	info := tenant.FromContext(r.Context())
	id := auth.FromContext(r.Context())
	if info == nil || id == nil {
		apperror.Respond(w, apperror.New(apperror.KindUnauthenticated, "authentication required"))
		return
	}

	status, err := h.svc.Enqueue(r.Context(), info.ClinicID, patientID, id.UserID)
	if err != nil {
		apperror.Respond(w, err)
		return
	}
	httpserver.Respond(w, http.StatusAccepted, status)
}

func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	status, err := h.svc.JobStatus(r.Context(), jobID)
	if err != nil {
		apperror.Respond(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, status)
}

func (h *Handler) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summaryID, err := uuid.Parse(chi.URLParam(r, "summaryId"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid summary id"))
		return
	}

	conn := tenant.ConnFromContext(r.Context())
	summary, err := NewStore(conn).Get(r.Context(), summaryID)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindNotFound, "summary not found"))
		return
	}
	httpserver.Respond(w, http.StatusOK, summary)
}

func (h *Handler) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientId"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	conn := tenant.ConnFromContext(r.Context())
	summaries, err := NewStore(conn).ListForPatient(r.Context(), patientID, 50)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindInternal, "listing summaries failed"))
		return
	}
	httpserver.Respond(w, http.StatusOK, summaries)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientId"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	var req ChatRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	info := tenant.FromContext(r.Context())
	if info == nil {
		apperror.Respond(w, apperror.New(apperror.KindUnauthenticated, "authentication required"))
		return
	}

	conn := tenant.ConnFromContext(r.Context())
	fetcher := aiinput.NewStoreFetcher(patient.NewStore(conn), clinical.NewStore(conn))

	answer, err := h.svc.Chat(r.Context(), fetcher, info.ClinicID, patientID, req.Question)
	if err != nil {
		apperror.Respond(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, ChatResponse{Answer: answer})
}
