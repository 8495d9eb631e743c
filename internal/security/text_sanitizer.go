// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はタスクのタイトル・説明からHTMLを取り除き、
// 保存されたテキストがクライアントでマークアップとして解釈されないようにする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses はエスケープされたタグを剥がす最大反復回数。
const maxSanitizePasses = 4

// TextSanitizer はプレーンテキスト用のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// SanitizeText は全てのタグを除去したプレーンテキストを返す。
	// 前後の空白は取り除く。同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizer実装。
// ポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去し、エンティティを元の文字に戻す。
// "&lt;script&gt;"のようにエスケープされたタグも、戻した結果が安定するまで繰り返し除去する。
func (s *textSanitizer) SanitizeText(raw string) string {
	cur := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(cur))
		if next == cur {
			break
		}
		cur = next
	}
	return strings.TrimSpace(cur)
}
