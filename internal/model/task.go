package model

import (
	"fmt"
	"strings"
	"time"
)

// Task は個人タスクを表す。
// IsAvailable=false は論理削除済みで、一覧・取得の対象外となる。
type Task struct {
	ID          int64
	Title       string
	Description *string
	Status      TaskStatus
	CreatedAt   time.Time
	DueDate     *time.Time
	IsAvailable bool
	Version     int64 // 楽観的排他制御用。更新ごとにストア側でインクリメントされる
}

// TaskStatus はタスクの状態を表す。
type TaskStatus string

const (
	// TaskStatusCreated は作成直後の状態。
	TaskStatusCreated TaskStatus = "Created"
	// TaskStatusInProgress は着手中の状態。
	TaskStatusInProgress TaskStatus = "InProgress"
	// TaskStatusCompleted は完了状態。
	TaskStatusCompleted TaskStatus = "Completed"
	// TaskStatusCancelled は中止状態。
	TaskStatusCancelled TaskStatus = "Cancelled"
)

// TaskStatuses は受け付けるステータスの一覧。
var TaskStatuses = []TaskStatus{
	TaskStatusCreated,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusCancelled,
}

// Valid はステータスが定義済みの値かどうかを返す。
func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseTaskStatus は文字列をTaskStatusに変換する。大文字小文字は区別しない。
// 未定義の値はエラーを返す。
func ParseTaskStatus(s string) (TaskStatus, error) {
	for _, v := range TaskStatuses {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown task status: %q", s)
}
