package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/taskman/internal/model"
)

// taskColumns はtasksテーブルのSELECT対象カラム。scanTaskの順序と一致させる。
const taskColumns = `id, title, description, status, created_at, due_date, is_available, version`

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// ListAvailable は論理削除されていないタスクをID順で返す。
// statusがnilでない場合はステータスの完全一致で絞り込む。
func (r *PostgresTaskRepo) ListAvailable(ctx context.Context, status *model.TaskStatus) ([]*model.Task, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != nil {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks
			 WHERE is_available = TRUE AND status = $1
			 ORDER BY id`,
			string(*status),
		)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks
			 WHERE is_available = TRUE
			 ORDER BY id`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*model.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// FindAvailableByID は論理削除されていないタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindAvailableByID(ctx context.Context, id int64) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND is_available = TRUE`,
		id,
	)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// FindByID は論理削除の有無にかかわらずタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id int64) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
		id,
	)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Create はタスクを作成し、採番されたIDとバージョンをtaskに設定する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) (int64, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tasks (title, description, status, created_at, due_date, is_available)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, version`,
		task.Title, task.Description, string(task.Status), task.CreatedAt, task.DueDate, task.IsAvailable,
	).Scan(&task.ID, &task.Version)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", err)
	}
	return 1, nil
}

// Update はtask.Versionが一致し、かつ論理削除されていない行を上書きする。
// 読み取り後に他のリクエストが更新・削除していた場合は0件となる。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) (int64, error) {
	var newVersion int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, status = $3, created_at = $4, due_date = $5,
		     version = version + 1
		 WHERE id = $6 AND version = $7 AND is_available = TRUE
		 RETURNING version`,
		task.Title, task.Description, string(task.Status), task.CreatedAt, task.DueDate,
		task.ID, task.Version,
	).Scan(&newVersion)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update task: %w", err)
	}
	task.Version = newVersion
	return 1, nil
}

// SoftDelete はversionが一致し、かつ論理削除されていない行のis_availableをfalseにする。
func (r *PostgresTaskRepo) SoftDelete(ctx context.Context, id int64, version int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET is_available = FALSE, version = version + 1
		 WHERE id = $1 AND version = $2 AND is_available = TRUE`,
		id, version,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to soft delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask は1行分のタスクを読み取る。
// sql.ErrNoRowsはラップせずにそのまま返す。
func scanTask(s rowScanner) (*model.Task, error) {
	task := &model.Task{}
	var (
		description sql.NullString
		status      string
		dueDate     sql.NullTime
	)
	err := s.Scan(
		&task.ID, &task.Title, &description, &status, &task.CreatedAt,
		&dueDate, &task.IsAvailable, &task.Version,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	task.Status = model.TaskStatus(status)
	if description.Valid {
		d := description.String
		task.Description = &d
	}
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	return task, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
