// Package security はアプリケーションのセキュリティ機能を提供する。
//
// 投稿・コメントは入力されたテキストをそのまま保存する。
// マークアップを含む本文は書き換えずに拒否するため、保存値は常に入力どおりになる。
package security

import (
	"errors"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/socialfeed/internal/model"
)

// ErrMarkup は本文にHTMLとして解釈される部分が含まれることを示す。
var ErrMarkup = errors.New("content contains markup")

// ContentSanitizer は本文がプレーンテキストかどうかを判定するインターフェース。
type ContentSanitizer interface {
	// PlainText は前後の空白を除き改行をLFに揃えた本文を返す。
	// タグ除去で失われる部分がある場合はErrMarkupを返す。
	PlainText(raw string) (string, error)
}

// contentSanitizer はContentSanitizerの実装。
// bluemonday.Policyはスレッドセーフなので共有してよい。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerの新しいインスタンスを生成する。
func NewContentSanitizer() ContentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// PlainText はStrictPolicyで全タグを除去した結果と入力を、実体参照を展開した上で比較する。
// 一致すれば除去されるものはないので入力をそのまま返す。
// "a < b" や "AT&amp;T" は一致し、"a<b" や "<br>" は一致しない。
func (s *contentSanitizer) PlainText(raw string) (string, error) {
	text := strings.TrimSpace(newlineReplacer.Replace(raw))
	if text == "" {
		return "", nil
	}
	stripped := html.UnescapeString(s.policy.Sanitize(text))
	if stripped != html.UnescapeString(text) {
		return "", ErrMarkup
	}
	return text, nil
}

// NormalizeContent は投稿・コメント本文を検証し、保存する値を返す。
// 空はEMPTY_CONTENT、maxLength超過はCONTENT_TOO_LONG、マークアップはINVALID_INPUT。
func NormalizeContent(sanitizer ContentSanitizer, content string, maxLength int) (string, error) {
	text, err := sanitizer.PlainText(content)
	if errors.Is(err, ErrMarkup) {
		return "", model.NewInvalidInputError("本文にHTMLタグとして解釈される文字列は使用できません")
	}
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", model.NewEmptyContentError()
	}
	if utf8.RuneCountInString(text) > maxLength {
		return "", model.NewContentTooLongError(maxLength)
	}
	return text, nil
}
