// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.AccessToken, error)
	Login(ctx context.Context, email, password string) (*model.AccessToken, error)
}

// AuthHandler は利用者登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// registerRequest は利用者登録リクエストのボディ。
type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type claimResponse struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type tokenUserResponse struct {
	ID     string          `json:"id"`
	Email  string          `json:"email"`
	Claims []claimResponse `json:"claims"`
}

// tokenResponse は登録・ログイン成功時のAPIレスポンス。
type tokenResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int64             `json:"expires_in"`
	ExpiresAt   time.Time         `json:"expires_at"`
	User        tokenUserResponse `json:"user"`
}

// Register は利用者登録を処理し、アクセストークンを返す。
// POST /create-user
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSONBody[registerRequest](w, r)
	if err != nil {
		writeBodyError(w, err, "User not informed.")
		return
	}

	token, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(token))
}

// Login はメールアドレスとパスワードで認証し、アクセストークンを返す。
// POST /auth
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSONBody[loginRequest](w, r)
	if err != nil {
		writeBodyError(w, err, "Login not informed.")
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(token))
}

// writeBodyError はボディのデコード失敗を400で返す。
// 空ボディの場合はemptyMessageを使う。
func writeBodyError(w http.ResponseWriter, err error, emptyMessage string) {
	message := "Request body could not be parsed."
	if errors.Is(err, errEmptyBody) {
		message = emptyMessage
	}
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(message))
}

func toTokenResponse(token *model.AccessToken) tokenResponse {
	claims := make([]claimResponse, len(token.User.Claims))
	for i, c := range token.User.Claims {
		claims[i] = claimResponse{Type: c.Type, Value: c.Value}
	}
	return tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
		ExpiresAt:   token.ExpiresAt,
		User: tokenUserResponse{
			ID:     token.User.ID,
			Email:  token.User.Email,
			Claims: claims,
		},
	}
}
