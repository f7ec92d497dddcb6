package clinic

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/auth"
	"github.com/medibrief/api/internal/httpserver"
)

// Handler provides HTTP handlers for clinic registration, staff login, and
// the current-staff-principal endpoint (C1).
type Handler struct {
	svc *Service
}

// NewHandler creates a clinic Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// PublicRoutes returns the unauthenticated /auth/* routes.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register-clinic", h.handleRegister)
	r.Post("/login", h.handleLogin)
	return r
}

// MeRoutes returns the authenticated GET /users/me route.
func (h *Handler) MeRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/me", h.handleMe)
	return r
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.svc.Register(r.Context(), req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.svc.Login(r.Context(), req)
	if err != nil {
		apperror.Respond(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apperror.Respond(w, apperror.New(apperror.KindUnauthenticated, "not authenticated"))
		return
	}

	u, err := h.svc.Me(r.Context(), id.UserID)
	if err != nil {
		apperror.Respond(w, apperror.New(apperror.KindNotFound, "user not found"))
		return
	}

	httpserver.Respond(w, http.StatusOK, u)
}
