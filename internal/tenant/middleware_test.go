package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type stubResolver struct {
	id  uuid.UUID
	err error
}

func (s stubResolver) Resolve(r *http.Request) (uuid.UUID, error) {
	return s.id, s.err
}

type stubLookup struct {
	name string
	err  error
}

func (s stubLookup) LookupByID(ctx context.Context, id uuid.UUID) (string, error) {
	return s.name, s.err
}

func TestMiddleware_ResolverError_Unauthenticated(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := Middleware(nil, stubLookup{}, stubResolver{err: errors.New("no identity")}, slog.Default())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	mw(okHandler).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMiddleware_UnknownClinic_Unauthenticated(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := Middleware(nil, stubLookup{err: errors.New("not found")}, stubResolver{id: uuid.New()}, slog.Default())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	mw(okHandler).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
