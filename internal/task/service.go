// Package task はタスクのライフサイクル（作成・更新・論理削除）のドメインロジックを提供する。
package task

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
)

// タイトル・説明の最大文字数。tasksテーブルのカラム長と一致させる。
const (
	MaxTitleLength       = 60
	MaxDescriptionLength = 200
)

// DefaultStoreTimeout はConfig.StoreTimeoutが未指定の場合のタイムアウト。
const DefaultStoreTimeout = 5 * time.Second

// MetricsRecorder はタスクサービスが記録するメトリクス。
type MetricsRecorder interface {
	RecordTaskWrite(op string)
	RecordPersistenceConflict(op string)
}

// Config はタスクサービスの設定。
type Config struct {
	StoreTimeout time.Duration // 1操作あたりのストアアクセスの上限時間
	RejectMarkup bool          // trueの場合、HTMLマークアップを含むタイトル・説明を検証エラーとする
}

// CreateInput はタスク作成の入力。
type CreateInput struct {
	Title       string
	Description *string
	DueDate     *time.Time
}

// UpdateInput はタスク更新の入力。全ての可変フィールドを上書きする。
// StatusとCreatedAtは必須。DescriptionとDueDateのnilは値の消去を意味する。
type UpdateInput struct {
	Title       string
	Description *string
	Status      model.TaskStatus
	CreatedAt   time.Time
	DueDate     *time.Time
}

// Service はタスク管理のサービス層。
// リクエスト間で状態を持たず、操作ごとにストアから最新の状態を読み直す。
type Service struct {
	repo     repository.TaskRepository
	markup   security.MarkupDetector
	metrics  MetricsRecorder
	config   Config
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(
	repo repository.TaskRepository,
	markup security.MarkupDetector,
	metrics MetricsRecorder,
	config Config,
) *Service {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultStoreTimeout
	}
	return &Service{
		repo:    repo,
		markup:  markup,
		metrics: metrics,
		config:  config,
		now:     time.Now,
	}
}

// List は論理削除されていないタスクを返す。statusがnilでなければ完全一致で絞り込む。
// 返すシーケンスは何度でも走査できる。
func (s *Service) List(ctx context.Context, status *model.TaskStatus) (iter.Seq[*model.Task], error) {
	if status != nil && !status.Valid() {
		return nil, model.NewInvalidStatusError(string(*status))
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	tasks, err := s.repo.ListAvailable(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	return slices.Values(tasks), nil
}

// Get は論理削除されていないタスクを返す。
// 存在しない場合と論理削除済みの場合は区別せずNotFoundとなる。
func (s *Service) Get(ctx context.Context, id int64) (*model.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	task, err := s.repo.FindAvailableByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(id)
	}
	return task, nil
}

// Create はタスクを作成する。ステータスはCreated、作成日時は現在時刻となる。
// タイトル・説明は受け取ったまま保存する。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Task, error) {
	if err := s.validateText(in.Title, in.Description); err != nil {
		return nil, err
	}

	task := &model.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      model.TaskStatusCreated,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
		DueDate:     in.DueDate,
		IsAvailable: true,
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	n, err := s.repo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	if n == 0 {
		s.recordConflict(metrics.OpCreate)
		return nil, model.NewPersistenceError("An error occurred while saving the task in the database.")
	}

	s.recordWrite(metrics.OpCreate)
	slog.Info("task created", slog.Int64("task_id", task.ID))
	return task, nil
}

// Update はタスクの可変フィールドを上書きする。
// 入力検証を先に行い、その後に論理削除の有無を問わず検索して
// 「存在しない」(NotFound) と「論理削除済み」(TaskNotAvailable) を区別する。
// 読み取り後に他のリクエストが更新・削除した場合は影響行数0件となり、PersistenceErrorを返す。
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) error {
	if err := s.validateText(in.Title, in.Description); err != nil {
		return err
	}
	if in.Status == "" {
		return model.NewValidationError("Property Status cannot be null or empty.")
	}
	if !in.Status.Valid() {
		return model.NewInvalidStatusError(string(in.Status))
	}
	if in.CreatedAt.IsZero() {
		return model.NewValidationError("Property CreatedAt cannot be null or empty.")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return model.NewTaskNotFoundError(id)
	}
	if !task.IsAvailable {
		return model.NewTaskNotAvailableError()
	}

	task.Title = in.Title
	task.Description = in.Description
	task.Status = in.Status
	task.CreatedAt = in.CreatedAt.UTC()
	task.DueDate = in.DueDate

	n, err := s.repo.Update(ctx, task)
	if err != nil {
		return fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	if n == 0 {
		s.recordConflict(metrics.OpUpdate)
		slog.Warn("task update affected no rows", slog.Int64("task_id", id))
		return model.NewPersistenceError("An error occurred while updating the task in the database.")
	}

	s.recordWrite(metrics.OpUpdate)
	return nil
}

// SoftDelete はタスクを論理削除する。
// 論理削除済みの場合は書き込みを行わずに成功とする（冪等）。
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return model.NewTaskNotFoundError(id)
	}
	if !task.IsAvailable {
		return nil
	}

	n, err := s.repo.SoftDelete(ctx, task.ID, task.Version)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	if n == 0 {
		s.recordConflict(metrics.OpDelete)
		slog.Warn("task soft delete affected no rows", slog.Int64("task_id", id))
		return model.NewPersistenceError("An error occurred while removing the task from the database.")
	}

	s.recordWrite(metrics.OpDelete)
	slog.Info("task deleted", slog.Int64("task_id", id))
	return nil
}

// validateText はタイトルと説明を検証する。値は書き換えない。
// タイトルは空文字列のみを拒否し、空白だけのタイトルは受け付ける。
func (s *Service) validateText(title string, description *string) error {
	if title == "" {
		return model.NewValidationError("Property Title cannot be null or empty.")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return model.NewValidationError(fmt.Sprintf("Property Title cannot exceed %d characters.", MaxTitleLength))
	}
	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLength {
		return model.NewValidationError(fmt.Sprintf("Property Description cannot exceed %d characters.", MaxDescriptionLength))
	}

	if s.config.RejectMarkup && s.markup != nil {
		if s.markup.ContainsMarkup(title) {
			return model.NewValidationError("Property Title cannot contain HTML markup.")
		}
		if description != nil && s.markup.ContainsMarkup(*description) {
			return model.NewValidationError("Property Description cannot contain HTML markup.")
		}
	}

	return nil
}

func (s *Service) recordWrite(op string) {
	if s.metrics != nil {
		s.metrics.RecordTaskWrite(op)
	}
}

func (s *Service) recordConflict(op string) {
	if s.metrics != nil {
		s.metrics.RecordPersistenceConflict(op)
	}
}
