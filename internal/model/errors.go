// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はAPIエラーの種別を表す閉じた列挙型。
// HTTPステータスへの変換はhandler層のトランスレータが網羅的に行う。
type ErrorKind int

const (
	// KindInternal は想定外のエラー（500）。
	KindInternal ErrorKind = iota
	// KindValidation は入力不正（400）。
	KindValidation
	// KindUnauthenticated は認証情報の欠落・不正・期限切れ（401）。
	KindUnauthenticated
	// KindInvalidCredentials はログイン時のパスワード不一致（401）。
	KindInvalidCredentials
	// KindForbidden は所有者以外による操作（403）。
	KindForbidden
	// KindNotFound は対象が存在しない（404）。
	KindNotFound
	// KindConflict は一意制約の重複（409）。
	KindConflict
	// KindRateLimited はレート制限超過（429）。
	KindRateLimited
)

// String はログ出力用の種別名を返す。
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// FieldError はフィールド単位のバリデーションエラー。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError は統一エラーフォーマットを表す。
type APIError struct {
	Kind     ErrorKind
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Details  []FieldError
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeEmailConflict      = "EMAIL_ALREADY_REGISTERED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRF               = "CSRF_TOKEN_INVALID"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError はフィールド単位の詳細を持つバリデーションエラーを生成する。
func NewValidationError(details []FieldError) *APIError {
	return &APIError{
		Kind:     KindValidation,
		Code:     ErrCodeValidation,
		Message:  "Validation error",
		Category: "validation",
		Details:  details,
	}
}

// NewUnauthenticatedError は認証情報が無い場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Kind:     KindUnauthenticated,
		Code:     ErrCodeUnauthenticated,
		Message:  "Unauthorized",
		Category: "auth",
	}
}

// NewInvalidTokenError はトークン検証失敗時のエラーを生成する。
// 署名不正・期限切れ・形式不正を区別しない。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Kind:     KindUnauthenticated,
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid or expired token",
		Category: "auth",
	}
}

// NewInvalidCredentialsError はログイン失敗時のエラーを生成する。
// どのフィールドが誤っていたかは示さない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Kind:     KindInvalidCredentials,
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
	}
}

// NewEmailConflictError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailConflictError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeEmailConflict,
		Message:  "Email is already registered",
		Category: "auth",
	}
}

// NewTaskNotFoundError はタスクが存在しない場合のエラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("Task not found: %s", taskID),
		Category: "task",
	}
}

// NewTaskForbiddenError は所有者以外がタスクを操作しようとした場合のエラーを生成する。
func NewTaskForbiddenError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeForbidden,
		Message:  "Forbidden: You don't own this task",
		Category: "task",
	}
}

// NewRateLimitedError はレート制限超過時のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Kind:     KindRateLimited,
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeCSRF,
		Message:  "CSRF token validation failed",
		Category: "auth",
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
// 詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Kind:     KindInternal,
		Code:     ErrCodeInternal,
		Message:  "Internal Server Error",
		Category: "system",
	}
}
