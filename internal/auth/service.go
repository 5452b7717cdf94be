// Package auth はユーザー登録、ログイン（アカウントロック付き）、アクセストークンの発行と検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 6

// MetricsRecorder は認証サービスが記録するメトリクス。
type MetricsRecorder interface {
	RecordLogin(outcome string)
	RecordRegistration()
}

// DefaultStoreTimeout はServiceConfig.StoreTimeoutが未指定の場合のタイムアウト。
const DefaultStoreTimeout = 5 * time.Second

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	MaxFailedAttempts int           // この回数連続で失敗するとロックする
	LockoutDuration   time.Duration // ロック期間
	DefaultClaims     []string      // 登録時に付与するクレーム種別
	StoreTimeout      time.Duration // ユーザーストアへの1回のアクセスの上限時間
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   *PasswordHasher
	tokens   *TokenManager
	metrics  MetricsRecorder
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenManager,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultStoreTimeout
	}
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

// Register はユーザーを登録し、アクセストークンを返す。
// メール確認は行わず、登録時点で確認済みとして扱う。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.AccessToken, error) {
	email := strings.TrimSpace(in.Email)
	if !isValidEmail(email) {
		return nil, model.NewValidationError("Invalid email.")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength || len(in.Password) > maxPasswordBytes {
		return nil, model.NewValidationError("Invalid password.")
	}
	if in.Password != in.ConfirmPassword {
		return nil, model.NewValidationError("Passwords are not matching.")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:             uuid.New().String(),
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: true,
		LockoutEnabled: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, c := range s.config.DefaultClaims {
		user.Claims = append(user.Claims, model.Claim{Type: c})
	}

	storeCtx, cancel := s.storeContext(ctx)
	err = s.userRepo.CreateWithClaims(storeCtx, user, user.Claims)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError(email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	if s.metrics != nil {
		s.metrics.RecordRegistration()
	}

	return s.tokens.Issue(user)
}

// Login は資格情報を検証し、アクセストークンを返す。
// 存在しないユーザーとパスワード誤りは同じエラーを返す。
// ロック中のアカウントはパスワードの正否にかかわらずブロックエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.AccessToken, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.hasher.VerifyDummy(password)
		s.recordLogin(metrics.LoginInvalid)
		return nil, model.NewInvalidCredentialsError()
	}

	now := s.now()
	if user.IsLockedOut(now) {
		slog.Warn("login attempt on locked account", slog.String("user_id", user.ID))
		s.recordLogin(metrics.LoginLocked)
		return nil, model.NewUserBlockedError()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, s.handleAccessFailure(ctx, user, now)
	}

	if user.AccessFailedCount > 0 {
		storeCtx, cancel := s.storeContext(ctx)
		err := s.userRepo.ResetAccessFailures(storeCtx, user.ID)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to reset access failures: %w", err)
		}
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	s.recordLogin(metrics.LoginSuccess)
	return token, nil
}

// handleAccessFailure はパスワード誤りを記録し、呼び出し元に返すエラーを決める。
// この失敗でロックに到達した場合はブロックエラーとなる。
func (s *Service) handleAccessFailure(ctx context.Context, user *model.User, now time.Time) error {
	if !user.LockoutEnabled {
		s.recordLogin(metrics.LoginInvalid)
		return model.NewInvalidCredentialsError()
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	lockoutEnd, err := s.userRepo.RecordAccessFailure(storeCtx, user.ID, s.config.MaxFailedAttempts, now.Add(s.config.LockoutDuration))
	if err != nil {
		return fmt.Errorf("failed to record access failure: %w", err)
	}

	if lockoutEnd != nil && lockoutEnd.After(now) {
		slog.Warn("account locked out",
			slog.String("user_id", user.ID),
			slog.Time("lockout_end", *lockoutEnd),
		)
		s.recordLogin(metrics.LoginLocked)
		return model.NewUserBlockedError()
	}

	s.recordLogin(metrics.LoginInvalid)
	return model.NewInvalidCredentialsError()
}

// GrantClaim はメールアドレスで指定したユーザーにクレームを付与する。
// 付与済みの場合は何もしない。
func (s *Service) GrantClaim(ctx context.Context, email, claimType string) error {
	claimType = strings.TrimSpace(claimType)
	if claimType == "" {
		return model.NewValidationError("Claim type cannot be empty.")
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.userRepo.AddClaim(storeCtx, user.ID, model.Claim{Type: claimType}); err != nil {
		return fmt.Errorf("failed to grant claim: %w", err)
	}

	slog.Info("claim granted",
		slog.String("user_id", user.ID),
		slog.String("claim_type", claimType),
	)
	return nil
}

// ValidateToken はアクセストークンを検証する。
func (s *Service) ValidateToken(token string) (*model.Principal, error) {
	return s.tokens.ValidateToken(token)
}

// storeContext はユーザーストアへの1回のアクセスに上限時間を設定する。
func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.StoreTimeout)
}

func (s *Service) findByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
}

func (s *Service) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}

// isValidEmail は表示名なしの単一アドレスとして解釈できるかを返す。
func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
