package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMiddleware_NoToken(t *testing.T) {
	sm, err := NewSessionManager("0123456789012345678901234567890123456789", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	mw := Middleware(sm, testLogger())

	var gotIdentity *Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotIdentity != nil {
		t.Fatalf("expected no identity without a token, got %+v", gotIdentity)
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	sm, err := NewSessionManager("0123456789012345678901234567890123456789", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	clinicID := uuid.New()
	userID := uuid.New()
	token, err := sm.IssueToken(SessionClaims{
		Subject:  "Dr. Rivera",
		Email:    "rivera@clinic.example",
		Role:     RoleDoctor,
		ClinicID: clinicID.String(),
		UserID:   userID.String(),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	mw := Middleware(sm, testLogger())
	var gotIdentity *Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotIdentity == nil {
		t.Fatal("expected identity in context")
	}
	if gotIdentity.Role != RoleDoctor {
		t.Errorf("Role = %q, want %q", gotIdentity.Role, RoleDoctor)
	}
	if gotIdentity.ClinicID != clinicID {
		t.Errorf("ClinicID = %v, want %v", gotIdentity.ClinicID, clinicID)
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	sm, err := NewSessionManager("0123456789012345678901234567890123456789", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	mw := Middleware(sm, testLogger())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-real-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
