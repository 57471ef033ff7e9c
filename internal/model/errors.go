// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, chat, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is はエラーコードが一致する場合にtrueを返す。
// errors.Is(err, model.ErrWrongPassword) のように比較できる。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 定義済みエラーコード
const (
	ErrCodeAlreadyRegistered = "ALREADY_REGISTERED"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeWrongPassword     = "WRONG_PASSWORD"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeEmptyMessage      = "EMPTY_MESSAGE"
	ErrCodeGenerationFailed  = "GENERATION_FAILED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeCSRFInvalid       = "CSRF_TOKEN_INVALID"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// errors.Isの比較対象として使う番兵値。
var (
	ErrAlreadyRegistered = &APIError{Code: ErrCodeAlreadyRegistered}
	ErrUserNotFound      = &APIError{Code: ErrCodeUserNotFound}
	ErrWrongPassword     = &APIError{Code: ErrCodeWrongPassword}
	ErrUnauthenticated   = &APIError{Code: ErrCodeUnauthenticated}
	ErrEmptyMessage      = &APIError{Code: ErrCodeEmptyMessage}
	ErrGenerationFailed  = &APIError{Code: ErrCodeGenerationFailed}
	ErrInvalidRequest    = &APIError{Code: ErrCodeInvalidRequest}
)

// NewAlreadyRegisteredError は登録済みメールアドレスでの再登録エラーを生成する。
func NewAlreadyRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyRegistered,
		Message:  "Email already registered",
		Category: "auth",
		Action:   "Log in with this email address or register with a different one.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Check the email address or sign up first.",
	}
}

// NewWrongPasswordError はパスワード不一致エラーを生成する。
func NewWrongPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWrongPassword,
		Message:  "Incorrect password",
		Category: "auth",
		Action:   "Check the password and try again.",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Not logged in",
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewEmptyMessageError は空メッセージエラーを生成する。
func NewEmptyMessageError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyMessage,
		Message:  "Message cannot be empty",
		Category: "validation",
		Action:   "Enter a message before sending.",
	}
}

// NewGenerationFailedError は応答生成の失敗エラーを生成する。
// 原因の詳細はログにのみ記録し、メッセージには含めない。
func NewGenerationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  "Failed to generate a reply",
		Category: "chat",
		Action:   "Wait a moment and send the message again.",
	}
}

// NewInvalidRequestError はリクエストスキーマ違反エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the request fields and try again.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}
