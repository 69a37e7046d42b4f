package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func TestRequireFirebaseAuth_AllowsValidToken(t *testing.T) {
	verifier := &stubTokenVerifier{
		token: &firebaseauth.Token{
			UID: "uid-123",
			Claims: map[string]any{
				"role":  []any{"ADMIN", "user"},
				"email": "buyer@example.com",
				"name":  "Tran Van A",
			},
		},
	}

	authn := NewAuthenticator(verifier)

	called := false
	handler := authn.RequireFirebaseAuth(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("expected identity in context")
		}
		if identity.UID != "uid-123" || identity.Name != "Tran Van A" || identity.Email != "buyer@example.com" {
			t.Fatalf("unexpected identity %+v", identity)
		}
		if !identity.IsAdmin() || !identity.HasRole("USER") {
			t.Fatalf("expected admin and user roles, got %v", identity.Roles)
		}
		if identity.PrimaryRole() != RoleAdmin {
			t.Fatalf("expected admin primary role")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if verifier.received != "token-abc" {
		t.Fatalf("expected token to be forwarded, got %q", verifier.received)
	}
}

func TestRequireFirebaseAuth_DefaultsToUserRole(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "uid-1", Claims: map[string]any{}}}
	authn := NewAuthenticator(verifier)

	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		if identity.IsAdmin() || !identity.HasRole(RoleUser) {
			t.Fatalf("expected plain user, got %v", identity.Roles)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer t")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequireFirebaseAuth_RejectsMissingHeader(t *testing.T) {
	authn := NewAuthenticator(&stubTokenVerifier{})
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be called")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assertAuthError(t, rec, http.StatusUnauthorized, "unauthenticated")
}

func TestRequireFirebaseAuth_RejectsInsufficientRole(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "uid-1", Claims: map[string]any{"role": "user"}}}
	authn := NewAuthenticator(verifier)
	handler := authn.RequireFirebaseAuth(RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assertAuthError(t, rec, http.StatusForbidden, "insufficient_role")
}

func TestRequireFirebaseAuth_MapsVerificationErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{name: "expired", err: ErrTokenExpired, code: "token_expired"},
		{name: "invalid", err: errors.New("boom"), code: "invalid_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			authn := NewAuthenticator(&stubTokenVerifier{err: tc.err})
			handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler should not be called")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer token")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assertAuthError(t, rec, http.StatusUnauthorized, tc.code)
		})
	}
}

func TestAuthenticate_WithoutVerifier(t *testing.T) {
	var authn *Authenticator
	if _, err := authn.Authenticate(context.Background(), "token"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRolesFromClaimsMapForm(t *testing.T) {
	roles := rolesFromClaims(map[string]any{"role": map[string]any{"admin": true, "user": false}}, "role")
	if len(roles) != 1 || roles[0] != RoleAdmin {
		t.Fatalf("unexpected roles %v", roles)
	}
}

func assertAuthError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d", status, rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != code {
		t.Fatalf("expected error code %s, got %v", code, body["error"])
	}
}

func TestAuthenticateCarriesTokenExpiry(t *testing.T) {
	expires := time.Date(2025, 5, 6, 10, 0, 0, 0, time.UTC)
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "uid-1", Expires: expires.Unix(), Claims: map[string]any{}}}

	identity, err := NewAuthenticator(verifier).Authenticate(context.Background(), "token")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !identity.ExpiresAt.Equal(expires) {
		t.Fatalf("expected expiry %s, got %s", expires, identity.ExpiresAt)
	}
	if identity.Expired(expires.Add(-time.Second)) {
		t.Fatalf("identity should be valid before expiry")
	}
	if !identity.Expired(expires) {
		t.Fatalf("identity should be expired at expiry")
	}
	if (&Identity{UID: "uid-2"}).Expired(expires) {
		t.Fatalf("identity without expiry never expires")
	}
}
