// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupDetector はタスクのタイトル・説明にHTMLマークアップが含まれるかを判定する。
// 入力テキストは書き換えない。判定にはbluemondayのStrictPolicyを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupDetector はユーザー入力テキストのマークアップ判定のインターフェース。
type MarkupDetector interface {
	// ContainsMarkup はrawにタグ、コメントなどHTMLとして解釈される要素が含まれていればtrueを返す。
	// "a < b" や "Tom & Jerry" のような、HTMLとして解釈されない記号はマークアップとみなさない。
	ContainsMarkup(raw string) bool
}

// markupDetector はMarkupDetectorの実装。ポリシーはスレッドセーフに共有できる。
type markupDetector struct {
	policy *bluemonday.Policy
}

// NewMarkupDetector はMarkupDetectorの新しいインスタンスを生成する。
func NewMarkupDetector() MarkupDetector {
	return &markupDetector{
		policy: bluemonday.StrictPolicy(),
	}
}

// ContainsMarkup はStrictPolicyで全要素を除去した結果が元のテキストと一致しなければtrueを返す。
// 文字実体のエスケープ差と改行コードの差は比較前に吸収する。
func (d *markupDetector) ContainsMarkup(raw string) bool {
	if !strings.ContainsRune(raw, '<') {
		return false
	}
	text := newlineNormalizer.Replace(raw)
	return html.UnescapeString(d.policy.Sanitize(text)) != html.UnescapeString(text)
}

// newlineNormalizer はHTMLトークナイザと同じくCRLFとCRをLFに揃える。
var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")
