package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/taskman/internal/model"
)

// mockTokenValidator はTokenValidatorのモック。
type mockTokenValidator struct {
	validateFn func(token string) (*model.Principal, error)
}

var _ TokenValidator = (*mockTokenValidator)(nil)

func (m *mockTokenValidator) ValidateToken(token string) (*model.Principal, error) {
	if m.validateFn != nil {
		return m.validateFn(token)
	}
	return nil, errTestInvalidToken
}

func validatorAccepting(valid string, principal *model.Principal) *mockTokenValidator {
	return &mockTokenValidator{
		validateFn: func(token string) (*model.Principal, error) {
			if token == valid {
				return principal, nil
			}
			return nil, errTestInvalidToken
		},
	}
}

func TestAuthMiddleware_ValidToken_InjectsPrincipal(t *testing.T) {
	principal := &model.Principal{UserID: "7", Email: "alice@example.com"}
	mw := NewAuthMiddleware(validatorAccepting("good-token", principal))

	var captured *model.Principal
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := PrincipalFromContext(r.Context())
		if err != nil {
			t.Fatalf("PrincipalFromContext() error = %v", err)
		}
		captured = p
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured == nil || captured.UserID != "7" {
		t.Errorf("principal = %+v, want UserID 7", captured)
	}
}

func TestAuthMiddleware_RejectsWith401(t *testing.T) {
	principal := &model.Principal{UserID: "7"}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic good-token"},
		{"scheme only", "Bearer"},
		{"empty token", "Bearer   "},
		{"unknown token", "Bearer forged-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewAuthMiddleware(validatorAccepting("good-token", principal))
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			body := decodeErrorBody(t, w)
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	mw := NewAuthMiddleware(validatorAccepting("good-token", &model.Principal{UserID: "1"}))
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "bearer good-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequireClaims(t *testing.T) {
	tests := []struct {
		name       string
		principal  *model.Principal
		wantStatus int
	}{
		{
			name:       "holder of claim passes",
			principal:  &model.Principal{UserID: "1", Claims: []model.Claim{{Type: string(model.ClaimDeleteTask), Value: "true"}}},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "missing claim is forbidden",
			principal:  &model.Principal{UserID: "2"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no principal is unauthorized",
			principal:  nil,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireClaims(model.ClaimDeleteTask)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodDelete, "/tasks/1", nil)
			if tt.principal != nil {
				req = req.WithContext(ContextWithPrincipal(req.Context(), tt.principal))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestPrincipalFromContext_Missing(t *testing.T) {
	if _, err := PrincipalFromContext(context.Background()); err == nil {
		t.Error("expected error for context without principal")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		wantOK bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"BEARER xyz", "xyz", true},
		{"Bearer  padded ", "padded", true},
		{"Token abc", "", false},
		{"Bearerabc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)

			got, ok := bearerToken(req)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// errTestInvalidToken はテスト用の検証エラー。
var errTestInvalidToken = errors.New("invalid token")
