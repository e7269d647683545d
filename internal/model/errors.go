// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateUsername  = "DUPLICATE_USERNAME"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeEmptyContent       = "EMPTY_CONTENT"
	ErrCodeContentTooLong     = "CONTENT_TOO_LONG"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"

	// リクエスト層のエラーコード
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeCSRFInvalid     = "CSRF_INVALID"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// IsErrorCode はerrのチェーンに指定コードのAPIErrorが含まれるかを判定する。
func IsErrorCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  fmt.Sprintf("ユーザー名は既に使用されています: %s", username),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "メールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを指定するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザーの存在有無を区別しないメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "post",
		Action:   "投稿が削除されていないか確認してください。",
	}
}

// NewForbiddenError は所有者以外による変更操作のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この投稿を削除する権限がありません。",
		Category: "post",
		Action:   "自分の投稿のみ削除できます。",
	}
}

// NewEmptyContentError は本文が空の場合のエラーを生成する。
func NewEmptyContentError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyContent,
		Message:  "本文が空です。",
		Category: "validation",
		Action:   "本文を入力してください。",
	}
}

// NewContentTooLongError は本文が上限文字数を超えた場合のエラーを生成する。
func NewContentTooLongError(max int) *APIError {
	return &APIError{
		Code:     ErrCodeContentTooLong,
		Message:  fmt.Sprintf("本文が長すぎます（上限%d文字）。", max),
		Category: "validation",
		Action:   "本文を短くしてください。",
	}
}

// NewInvalidInputError は入力値不正エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthenticatedError は未ログインまたはセッション切れのエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンが無効です。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
