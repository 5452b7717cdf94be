// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// ErrDuplicateEmail は同じメールアドレスのユーザーが既に存在する場合に返される。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザー（認証情報）の永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
	// クレームも合わせて読み込む。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithClaims はユーザーとクレームを同一トランザクションで作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	CreateWithClaims(ctx context.Context, user *model.User, claims []model.Claim) error

	// ListClaims はユーザーに付与されたクレームを返す。
	ListClaims(ctx context.Context, userID string) ([]model.Claim, error)

	// AddClaim はユーザーにクレームを付与する。付与済みの場合は何もしない。
	AddClaim(ctx context.Context, userID string, claim model.Claim) error

	// RecordAccessFailure はログイン失敗回数を原子的に1増やす。
	// 失敗回数がmaxAttemptsに達した場合は回数を0に戻し、lockout_endをlockoutEndに設定する。
	// 更新後のlockout_endを返す。
	RecordAccessFailure(ctx context.Context, userID string, maxAttempts int, lockoutEnd time.Time) (*time.Time, error)

	// ResetAccessFailures はログイン失敗回数を0に戻す。
	ResetAccessFailures(ctx context.Context, userID string) error
}

// TaskRepository はタスクの永続化インターフェース。
// 書き込み系は反映された行数を返し、0件の判定は呼び出し側で行う。
type TaskRepository interface {
	// ListAvailable は論理削除されていないタスクを返す。
	// statusがnilでない場合はステータスの完全一致で絞り込む。
	ListAvailable(ctx context.Context, status *model.TaskStatus) ([]*model.Task, error)

	// FindAvailableByID は論理削除されていないタスクを取得する。見つからない場合はnilを返す。
	FindAvailableByID(ctx context.Context, id int64) (*model.Task, error)

	// FindByID は論理削除の有無にかかわらずタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Task, error)

	// Create はタスクを作成し、採番されたIDとバージョンをtaskに設定する。
	Create(ctx context.Context, task *model.Task) (int64, error)

	// Update はtask.Versionが一致し、かつ論理削除されていない行を上書きする。
	// 成功時はtask.Versionを新しい値に更新する。
	Update(ctx context.Context, task *model.Task) (int64, error)

	// SoftDelete はversionが一致し、かつ論理削除されていない行のis_availableをfalseにする。
	SoftDelete(ctx context.Context, id int64, version int64) (int64, error)
}
