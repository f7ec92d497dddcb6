package auth

import (
	"net/http"

	"github.com/medibrief/api/internal/apperror"
)

// RequireAuth rejects requests that have no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			apperror.Respond(w, apperror.New(apperror.KindUnauthenticated, "authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that rejects requests whose identity does not
// hold one of the listed roles. Roles are checked by exact match.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				apperror.Respond(w, apperror.New(apperror.KindForbidden, "authentication required"))
				return
			}
			if _, ok := set[id.Role]; !ok {
				apperror.Respond(w, apperror.New(apperror.KindForbidden, "insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinRole returns middleware that rejects requests whose identity has a
// lower staff privilege level than the given minimum role. Patients never
// satisfy a RequireMinRole check — they are not part of the staff hierarchy
// (use RequireRole(RolePatient) for patient-only endpoints instead).
func RequireMinRole(minRole string) func(http.Handler) http.Handler {
	minLevel := roleLevel[minRole]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				apperror.Respond(w, apperror.New(apperror.KindForbidden, "authentication required"))
				return
			}
			level, isStaff := roleLevel[id.Role]
			if !isStaff || level < minLevel {
				apperror.Respond(w, apperror.New(apperror.KindForbidden, "insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
