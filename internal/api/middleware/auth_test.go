package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAdminAuth(t *testing.T) {
	// MinCost, чтобы тесты не тратили время на полноценный bcrypt
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		tokenHash  string
		authHeader string
		wantStatus int
		wantNext   bool
	}{
		{
			name:       "valid token",
			tokenHash:  string(hash),
			authHeader: "Bearer operator-secret",
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "wrong token",
			tokenHash:  string(hash),
			authHeader: "Bearer wrong-secret",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			tokenHash:  string(hash),
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer scheme",
			tokenHash:  string(hash),
			authHeader: "Basic b3BzOnNlY3JldA==",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "hash not configured",
			tokenHash:  "",
			authHeader: "Bearer operator-secret",
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled = false

			req := httptest.NewRequest("POST", "/api/v1/orders/1/approve", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			AdminAuth(tt.tokenHash)(next).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if nextCalled != tt.wantNext {
				t.Errorf("next called = %v, want %v", nextCalled, tt.wantNext)
			}
			if tt.wantStatus == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header on 401")
			}
		})
	}
}
