package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	. "github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/middleware"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/mocks"
)

func okHandler(t *testing.T, want domain.Actor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			t.Error("expected the actor on the request context")
		}
		if actor != want {
			t.Errorf("expected actor %+v, got %+v", want, actor)
		}
		w.WriteHeader(http.StatusOK)
	}
}

func TestRequireRole(t *testing.T) {
	privateKey, publicKey := mocks.GenerateTestKeys(t)
	otherKey, _ := mocks.GenerateTestKeys(t)
	auth := NewAuthMiddleware(publicKey, mocks.NewTestLogger())

	teacher := domain.Actor{Subject: "teacher-1", Role: domain.RoleTeacher}
	parent := domain.Actor{Subject: "session-1", Role: domain.RoleParent}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer invalid.token.here", http.StatusUnauthorized},
		{"expired", "Bearer " + mocks.CreateTestToken(t, privateKey, teacher, -time.Hour), http.StatusUnauthorized},
		{"wrong key", "Bearer " + mocks.CreateTestToken(t, otherKey, teacher, time.Hour), http.StatusUnauthorized},
		{"wrong role", "Bearer " + mocks.CreateTestToken(t, privateKey, parent, time.Hour), http.StatusForbidden},
		{"allowed", "Bearer " + mocks.CreateTestToken(t, privateKey, teacher, time.Hour), http.StatusOK},
	}

	handler := auth.RequireRole([]domain.Role{domain.RoleTeacher, domain.RoleAdmin}, okHandler(t, teacher))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/teacher/meeting/end", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestParseToken(t *testing.T) {
	privateKey, publicKey := mocks.GenerateTestKeys(t)
	auth := NewAuthMiddleware(publicKey, mocks.NewTestLogger())

	admin := domain.Actor{Subject: "admin-1", Role: domain.RoleAdmin}
	actor, err := auth.ParseToken(mocks.CreateTestToken(t, privateKey, admin, time.Hour))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor != admin {
		t.Errorf("expected %+v, got %+v", admin, actor)
	}

	if _, err := auth.ParseToken(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}

	unknownRole := mocks.CreateTestToken(t, privateKey, domain.Actor{Subject: "x", Role: "JANITOR"}, time.Hour)
	if _, err := auth.ParseToken(unknownRole); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for unknown role, got %v", err)
	}

	noSubject := mocks.CreateTestToken(t, privateKey, domain.Actor{Role: domain.RoleAdmin}, time.Hour)
	if _, err := auth.ParseToken(noSubject); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for missing sub, got %v", err)
	}

	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "admin-1",
		"role": "ADMIN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign hmac token: %v", err)
	}
	if _, err := auth.ParseToken(hmac); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected HS256 tokens to be rejected, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"Bearer  padded ", "padded"},
		{"bearer abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		if got := BearerToken(req); got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.header, tt.want, got)
		}
	}
}
