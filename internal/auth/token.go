package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/taskman/internal/model"
)

var (
	// ErrInvalidToken はトークンの署名・形式・発行者・対象者が不正な場合に返す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken はトークンの有効期限が切れている場合に返す。
	ErrExpiredToken = errors.New("token has expired")
)

// TokenConfig はアクセストークンの設定。
type TokenConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	Expiration time.Duration
}

// tokenClaims はアクセストークンに埋め込むクレーム。
type tokenClaims struct {
	Email  string        `json:"email"`
	Claims []model.Claim `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager はHS256署名のアクセストークンを発行・検証する。
// サーバー側には状態を持たない。
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(config TokenConfig) *TokenManager {
	return &TokenManager{config: config, now: time.Now}
}

// Issue はユーザーのアクセストークンを発行する。
func (m *TokenManager) Issue(user *model.User) (*model.AccessToken, error) {
	now := m.now()
	expiresAt := now.Add(m.config.Expiration)

	claims := tokenClaims{
		Email:  user.Email,
		Claims: user.Claims,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.config.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &model.AccessToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(m.config.Expiration.Seconds()),
		ExpiresAt:   expiresAt.UTC(),
		User: model.TokenUser{
			ID:     user.ID,
			Email:  user.Email,
			Claims: user.Claims,
		},
	}, nil
}

// ValidateToken はトークンを検証し、呼び出し元のPrincipalを返す。
// 期限切れはErrExpiredToken、それ以外の不正はErrInvalidTokenとなる。
func (m *TokenManager) ValidateToken(tokenString string) (*model.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(m.config.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &model.Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Claims: claims.Claims,
	}, nil
}
