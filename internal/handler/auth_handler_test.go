package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*model.AccessToken, error)
	loginFn    func(ctx context.Context, email, password string) (*model.AccessToken, error)
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.AccessToken, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.AccessToken, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func sampleAccessToken(email string) *model.AccessToken {
	return &model.AccessToken{
		AccessToken: "signed.jwt.token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		ExpiresAt:   time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		User: model.TokenUser{
			ID:     "42",
			Email:  email,
			Claims: []model.Claim{{Type: string(model.ClaimDeleteTask), Value: "true"}},
		},
	}
}

// decodeProblem はレスポンスボディを統一エラーフォーマットとしてデコードする。
func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode problem body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

// --- Register ---

func TestAuthHandler_Register_Success(t *testing.T) {
	var captured auth.RegisterInput
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.AccessToken, error) {
			captured = in
			return sampleAccessToken(in.Email), nil
		},
	}
	h := NewAuthHandler(svc)

	body := `{"email":"alice@example.com","password":"secret1","confirm_password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/create-user", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	if captured.Email != "alice@example.com" || captured.Password != "secret1" || captured.ConfirmPassword != "secret1" {
		t.Errorf("captured input = %+v", captured)
	}

	var resp tokenResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.AccessToken != "signed.jwt.token" {
		t.Errorf("access_token = %q", resp.AccessToken)
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", resp.TokenType)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("expires_in = %d, want 3600", resp.ExpiresIn)
	}
	if resp.User.Email != "alice@example.com" || resp.User.ID != "42" {
		t.Errorf("user = %+v", resp.User)
	}
	if len(resp.User.Claims) != 1 || resp.User.Claims[0].Type != "DeleteTask" {
		t.Errorf("claims = %+v", resp.User.Claims)
	}
}

func TestAuthHandler_Register_EmptyBody(t *testing.T) {
	for _, body := range []string{"", "null"} {
		t.Run("body="+body, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{
				registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.AccessToken, error) {
					t.Fatal("service should not be called")
					return nil, nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/create-user", strings.NewReader(body))
			w := httptest.NewRecorder()

			h.Register(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if got := decodeProblem(t, w); got.Message != "User not informed." {
				t.Errorf("message = %q, want %q", got.Message, "User not informed.")
			}
		})
	}
}

func TestAuthHandler_Register_MalformedJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/create-user", strings.NewReader(`{"email":`))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeProblem(t, w); got.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", got.Code, model.ErrCodeInvalidRequest)
	}
}

func TestAuthHandler_Register_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"invalid email", model.NewValidationError("Invalid email."), http.StatusBadRequest, "Invalid email."},
		{"password mismatch", model.NewValidationError("Passwords are not matching."), http.StatusBadRequest, "Passwords are not matching."},
		{"duplicate", model.NewDuplicateEmailError("alice@example.com"), http.StatusBadRequest, "Email 'alice@example.com' is already taken."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{
				registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.AccessToken, error) {
					return nil, tt.err
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/create-user", strings.NewReader(`{"email":"alice@example.com"}`))
			w := httptest.NewRecorder()

			h.Register(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := decodeProblem(t, w); got.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}

// --- Login ---

func TestAuthHandler_Login_Success(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.AccessToken, error) {
			if email != "alice@example.com" || password != "secret1" {
				t.Errorf("login(%q, %q)", email, password)
			}
			return sampleAccessToken(email), nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"email":"alice@example.com","password":"secret1"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestAuthHandler_Login_EmptyBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth", nil)
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeProblem(t, w); got.Message != "Login not informed." {
		t.Errorf("message = %q, want %q", got.Message, "Login not informed.")
	}
}

func TestAuthHandler_Login_BlockedAndInvalidAre400(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"blocked", model.NewUserBlockedError(), "User blocked."},
		{"invalid", model.NewInvalidCredentialsError(), "Invalid email or password."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{
				loginFn: func(ctx context.Context, email, password string) (*model.AccessToken, error) {
					return nil, tt.err
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
			w := httptest.NewRecorder()

			h.Login(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if got := decodeProblem(t, w); got.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}
