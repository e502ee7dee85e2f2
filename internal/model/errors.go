// Package model はドメインモデルを定義する。
package model

import "fmt"

// AppError はユーザーに表示するエラーを表す。
// エラーページに原因カテゴリと対処方法を表示する。
type AppError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, note, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation       = "VALIDATION_FAILED"
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeNoteNotFound     = "NOTE_NOT_FOUND"
	ErrCodePageNotFound     = "PAGE_NOT_FOUND"
	ErrCodeUpstream         = "UPSTREAM_FAILED"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeCSRF             = "CSRF_FAILED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeQuoteUnavailable = "QUOTE_UNAVAILABLE"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Please check your input and try again.",
	}
}

// NewAuthError はサインイン失敗エラーを生成する。
func NewAuthError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeAuthFailed,
		Message:  message,
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewNoteNotFoundError はノート未検出エラーを生成する。
// 他ユーザーのノートを指定した場合も同じエラーを返し、存在を漏らさない。
func NewNoteNotFoundError(noteID string) *AppError {
	return &AppError{
		Code:     ErrCodeNoteNotFound,
		Message:  fmt.Sprintf("Note not found: %s", noteID),
		Category: "note",
		Action:   "Go back to your notes and pick an existing note.",
	}
}

// NewPageNotFoundError は存在しないページへのアクセスエラーを生成する。
func NewPageNotFoundError() *AppError {
	return &AppError{
		Code:     ErrCodePageNotFound,
		Message:  "The page you are looking for does not exist.",
		Category: "system",
		Action:   "Check the address or go back to the home page.",
	}
}

// NewUpstreamError は外部サービス（IdP・データストア）の失敗を表すエラーを生成する。
// 詳細はログにのみ記録し、ユーザーには一般的なメッセージを返す。
func NewUpstreamError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeUpstream,
		Message:  message,
		Category: "note",
		Action:   "Please wait a moment and try again.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *AppError {
	return &AppError{
		Code:     ErrCodeInternal,
		Message:  "Something went wrong.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *AppError {
	return &AppError{
		Code:     ErrCodeCSRF,
		Message:  "Invalid or missing form token.",
		Category: "auth",
		Action:   "Reload the page and submit the form again.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *AppError {
	return &AppError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests.",
		Category: "system",
		Action:   "Please wait and retry after a short while.",
	}
}

// NewQuoteUnavailableError は名言APIが利用できない場合のエラーを生成する。
func NewQuoteUnavailableError() *AppError {
	return &AppError{
		Code:     ErrCodeQuoteUnavailable,
		Message:  "Could not load inspiration right now. Please try again.",
		Category: "system",
		Action:   "Reload the page in a moment.",
	}
}
