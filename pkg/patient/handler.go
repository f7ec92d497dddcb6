package patient

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/audit"
	"github.com/medibrief/api/internal/auth"
	"github.com/medibrief/api/internal/httpserver"
	"github.com/medibrief/api/internal/tenant"
)

// Handler provides HTTP handlers for patient CRUD, staff-issued invites,
// and the patient onboarding/login flows (spec.md §4.1, §4.4). It holds no
// tenant-scoped state itself: every authenticated route builds a fresh
// Service from the request's tenant-bound connection, since pkg/patient.Store
// must never outlive one request (see Store's doc comment).
type Handler struct {
	pool       *pgxpool.Pool
	sessionMgr *auth.SessionManager
	bcryptCost int
	audit      *audit.Writer
}

// NewHandler creates a patient Handler. pool is the raw, unscoped pool used
// by the pre-tenant-bind setup and login flows.
func NewHandler(pool *pgxpool.Pool, sessionMgr *auth.SessionManager, bcryptCost int, audit *audit.Writer) *Handler {
	return &Handler{pool: pool, sessionMgr: sessionMgr, bcryptCost: bcryptCost, audit: audit}
}

// service builds a Service scoped to the current request. For the public
// setup/login routes there is no tenant-bound connection yet, and the
// resulting store is never touched by Setup/Login, which only use the raw
// pool.
func (h *Handler) service(r *http.Request) *Service {
	conn := tenant.ConnFromContext(r.Context())
	return NewService(NewStore(conn), h.pool, h.sessionMgr, h.bcryptCost)
}

// PublicRoutes returns the unauthenticated setup/login routes, mounted
// outside tenant binding since neither runs with a clinic id yet.
// Path names match spec.md §4.1's literal `/auth/patient-setup` and
// `/auth/patient-login`, mounted alongside pkg/clinic.Handler's at /auth.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/patient-setup", h.handleSetup)
	r.Post("/patient-login", h.handleLogin)
	return r
}

// Routes returns the authenticated, tenant-bound patient CRUD routes.
// List/create/update/invite require staff (ADMIN or DOCTOR); delete
// requires ADMIN.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor)

	r.With(staff).Get("/", h.handleList)
	r.With(staff).Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(staff)
		r.Get("/", h.handleGet)
		r.Put("/", h.handleUpdate)
		r.With(auth.RequireRole(auth.RoleAdmin)).Delete("/", h.handleDelete)
		r.Post("/invite", h.handleCreateInvite)
	})
	return r
}

// PatientRoutes returns the authenticated, tenant-bound routes a logged-in
// patient uses against their own account.
func (h *Handler) PatientRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RolePatient))
	r.Post("/password", h.handleChangePassword)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	p, err := h.service(r).Create(r.Context(), id.ClinicID, req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "create patient", p.ID)
	httpserver.Respond(w, http.StatusCreated, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.service(r).List(r.Context(), after, limit)
	if err != nil {
		apperror.Respond(w, apperror.Wrap(apperror.KindInternal, "listing patients", err))
		return
	}

	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	p, err := h.service(r).Get(r.Context(), id)
	if err != nil {
		apperror.Respond(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.service(r).Update(r.Context(), id, req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "update patient", p.ID)
	httpserver.Respond(w, http.StatusOK, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	if err := h.service(r).Delete(r.Context(), id); err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "archive patient", id)
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindValidation, "invalid patient id"))
		return
	}

	resp, err := h.service(r).CreateInvite(r.Context(), id)
	if err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "create patient invite", id)
	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service(r).Setup(r.Context(), req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service(r).Login(r.Context(), req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	if err := h.service(r).ChangePassword(r.Context(), id.UserID, req); err != nil {
		apperror.Respond(w, err)
		return
	}

	h.logAudit(r, "change patient password", id.UserID)
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
		EntityType: "patient",
		EntityID:   entityID,
	})
}
