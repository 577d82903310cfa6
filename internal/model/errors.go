// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeLoginRequired        = "LOGIN_REQUIRED"
	ErrCodeDirectoryUnavailable = "DIRECTORY_UNAVAILABLE"
	ErrCodeProviderFailure      = "PROVIDER_FAILURE"
	ErrCodeInvalidState         = "INVALID_STATE"
	ErrCodeRateLimited          = "RATE_LIMITED"
)

// NewUnauthenticatedError はクレデンシャルがどのユーザーにも解決できなかった
// 場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "トークンを確認するか、ログインし直してください。",
	}
}

// NewLoginRequiredError は対話的ログインが必要な場合のエラーを生成する。
func NewLoginRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginRequired,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "/login からログインしてください。",
	}
}

// NewDirectoryUnavailableError はユーザーディレクトリに到達できない場合の
// エラーを生成する。認証失敗とは区別し、サーバーエラーとして扱う。
func NewDirectoryUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeDirectoryUnavailable,
		Message:  "ユーザーディレクトリに接続できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProviderFailureError は外部IdPでの認証が失敗・拒否された場合の
// エラーを生成する。
func NewProviderFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderFailure,
		Message:  "外部プロバイダーでの認証に失敗しました。",
		Category: "auth",
		Action:   "組織のメンバーであることを確認し、再度ログインしてください。",
	}
}

// NewInvalidStateError はOAuthコールバックのstate検証に失敗した場合の
// エラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "不正なstateパラメータです。",
		Category: "auth",
		Action:   "ログインフローを最初からやり直してください。",
	}
}
