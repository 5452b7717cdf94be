package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	var lockoutEnd sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, email_confirmed, lockout_enabled,
		        access_failed_count, lockout_end, created_at, updated_at
		 FROM users
		 WHERE normalized_email = $1`,
		normalizeEmail(email),
	).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.EmailConfirmed, &user.LockoutEnabled,
		&user.AccessFailedCount, &lockoutEnd, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if lockoutEnd.Valid {
		t := lockoutEnd.Time
		user.LockoutEnd = &t
	}

	claims, err := r.ListClaims(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Claims = claims

	return user, nil
}

// CreateWithClaims はユーザーとクレームを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithClaims(ctx context.Context, user *model.User, claims []model.Claim) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ユーザーを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, normalized_email, password_hash, email_confirmed,
		                    lockout_enabled, access_failed_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)`,
		user.ID, user.Email, normalizeEmail(user.Email), user.PasswordHash, user.EmailConfirmed,
		user.LockoutEnabled, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	// クレームを作成
	for _, c := range claims {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_claims (user_id, claim_type, claim_value)
			 VALUES ($1, $2, $3)
			 ON CONFLICT DO NOTHING`,
			user.ID, c.Type, c.Value,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user claim: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListClaims はユーザーに付与されたクレームを返す。
func (r *PostgresUserRepo) ListClaims(ctx context.Context, userID string) ([]model.Claim, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT claim_type, claim_value FROM user_claims WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user claims: %w", err)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		var c model.Claim
		if err := rows.Scan(&c.Type, &c.Value); err != nil {
			return nil, fmt.Errorf("failed to scan user claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user claims: %w", err)
	}

	return claims, nil
}

// AddClaim はユーザーにクレームを付与する。付与済みの場合は何もしない。
func (r *PostgresUserRepo) AddClaim(ctx context.Context, userID string, claim model.Claim) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_claims (user_id, claim_type, claim_value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		userID, claim.Type, claim.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to add user claim: %w", err)
	}
	return nil
}

// RecordAccessFailure はログイン失敗回数を原子的に1増やし、上限到達時はロックする。
// 同時に複数の失敗が届いても1回の UPDATE で判定するため取りこぼさない。
func (r *PostgresUserRepo) RecordAccessFailure(ctx context.Context, userID string, maxAttempts int, lockoutEnd time.Time) (*time.Time, error) {
	var end sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET access_failed_count = CASE WHEN access_failed_count + 1 >= $2 THEN 0 ELSE access_failed_count + 1 END,
		     lockout_end = CASE WHEN access_failed_count + 1 >= $2 THEN $3 ELSE lockout_end END,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING lockout_end`,
		userID, maxAttempts, lockoutEnd,
	).Scan(&end)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record access failure: %w", err)
	}
	if !end.Valid {
		return nil, nil
	}
	t := end.Time
	return &t, nil
}

// ResetAccessFailures はログイン失敗回数を0に戻す。
func (r *PostgresUserRepo) ResetAccessFailures(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET access_failed_count = 0, updated_at = now()
		 WHERE id = $1 AND access_failed_count <> 0`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to reset access failures: %w", err)
	}
	return nil
}

// normalizeEmail は一意性判定と検索に使う正規化済みメールアドレスを返す。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
