package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 呼び出し元に返してよい情報だけを持ち、内部エラーの詳細は含めない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, auth, not_found, conflict, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryNotFound   = "not_found"
	CategoryConflict   = "conflict"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeUserBlocked        = "USER_BLOCKED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeTaskNotAvailable   = "TASK_NOT_AVAILABLE"
	ErrCodePersistenceFailed  = "PERSISTENCE_FAILED"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: CategoryValidation,
		Action:   "Correct the request and try again.",
	}
}

// NewInvalidRequestError はリクエストボディやパラメータが解釈できない場合のエラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: CategoryValidation,
		Action:   "Send a well-formed JSON request.",
	}
}

// NewInvalidStatusError は未定義のタスクステータスが指定された場合のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("Invalid task status: %s", status),
		Category: CategoryValidation,
		Action:   "Use one of Created, InProgress, Completed, Cancelled.",
	}
}

// NewDuplicateEmailError は登録済みメールアドレスでの登録エラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("Email '%s' is already taken.", email),
		Category: CategoryValidation,
		Action:   "Sign in with the existing account or use another email.",
	}
}

// NewUserBlockedError はアカウントロック中のエラーを生成する。
// 資格情報の正否は明かさない。
func NewUserBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeUserBlocked,
		Message:  "User blocked.",
		Category: CategoryAuth,
		Action:   "Wait a few minutes and try again.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザーの存在有無にかかわらず同一のメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: CategoryAuth,
		Action:   "Check your credentials and try again.",
	}
}

// NewUnauthorizedError はトークン未指定・不正・期限切れのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication is required.",
		Category: CategoryAuth,
		Action:   "Sign in and send the token as 'Authorization: Bearer <token>'.",
	}
}

// NewForbiddenError は必要なクレームを持たない場合のエラーを生成する。
// どのクレームが必要かは明かさない。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You are not allowed to perform this operation.",
		Category: CategoryAuth,
		Action:   "Contact an administrator if you need access.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: CategoryNotFound,
		Action:   "Check the email address.",
	}
}

// NewTaskNotFoundError はタスクが見つからない場合のエラーを生成する。
// 論理削除済みのタスクも同じエラーとなる。
func NewTaskNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("Task not found: %d", id),
		Category: CategoryNotFound,
		Action:   "Check the task ID.",
	}
}

// NewTaskNotAvailableError は論理削除済みタスクへの更新エラーを生成する。
func NewTaskNotAvailableError() *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotAvailable,
		Message:  "Task not available.",
		Category: CategoryConflict,
		Action:   "The task has been removed and can no longer be modified.",
	}
}

// NewPersistenceError は書き込みが1行も反映されなかった場合のエラーを生成する。
// 同時更新による競合か、ストア側で書き込みが拒否されたことを示す。
func NewPersistenceError(message string) *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailed,
		Message:  message,
		Category: CategorySystem,
		Action:   "Reload the task and try again.",
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: CategorySystem,
		Action:   "Please wait a moment and try again.",
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: CategorySystem,
		Action:   "Please wait and retry after the specified time.",
	}
}
