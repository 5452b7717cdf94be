// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/taskman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済みPrincipalを格納するためのキー。
var principalContextKey = contextKey("principal")

// TokenValidator はアクセストークンの検証に必要なインターフェース。
type TokenValidator interface {
	ValidateToken(token string) (*model.Principal, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 呼び出し元のPrincipalをリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーの欠落・形式不正・署名不正・期限切れはいずれも同じ401を返す。
func NewAuthMiddleware(validator TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			principal, err := validator.ValidateToken(token)
			if err != nil {
				slog.Debug("token rejected", slog.String("error", err.Error()))
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireClaims は呼び出し元が指定したクレームを全て保持していることを要求するミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。不足している場合はどのクレームかを明かさずに403を返す。
func RequireClaims(tags ...model.ClaimTag) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := PrincipalFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			for _, tag := range tags {
				if !principal.HasClaim(tag) {
					slog.Warn("missing required claim",
						slog.String("user_id", principal.UserID),
						slog.String("claim", string(tag)),
					)
					WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext はリクエストコンテキストから認証済みPrincipalを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || principal == nil {
		return nil, errors.New("principal not found in context")
	}
	return principal, nil
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
// ロギングミドルウェアの配下であれば、ログ出力用にユーザーIDも記録する。
func ContextWithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	if state := requestStateFromContext(ctx); state != nil && principal != nil {
		state.setUserID(principal.UserID)
	}
	return context.WithValue(ctx, principalContextKey, principal)
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
