package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protected() http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ := SubjectFromContext(r.Context())
		w.Write([]byte(subject))
	})
	return WithAuth(RequireAdmin(ok))
}

func TestRequireAdminRejectsAnonymous(t *testing.T) {
	rr := httptest.NewRecorder()
	protected().ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestRequireAdminRejectsNonAdminRole(t *testing.T) {
	tok, err := SignToken("viewer@x.com", "viewer", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	protected().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestRequireAdminAcceptsAdminToken(t *testing.T) {
	tok, err := SignToken("ops@x.com", "admin", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	protected().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ops@x.com" {
		t.Fatalf("subject = %q, want ops@x.com", rr.Body.String())
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	tok, err := SignToken("ops@x.com", "admin", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	protected().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}
