// Package security は外部から受け取ったHTMLのサニタイズと、外部API呼び出し時のSSRF防止を提供する。
package security

import (
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

// QuoteSanitizer は名言APIが返す整形済みHTMLを、ページに埋め込める形に変換する。
// 許可リストにないタグ・属性は除去する。
type QuoteSanitizer struct {
	policy *bluemonday.Policy
}

// NewQuoteSanitizer はQuoteSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: blockquote, p, footer, cite, br, strong, em, b, i, span
//   - class属性のみspanで許可
//   - リンク、画像、script, style, iframe, on*属性はすべて除去
func NewQuoteSanitizer() *QuoteSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"blockquote", "p", "footer", "cite", "br",
		"strong", "em", "b", "i", "span",
	)
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("span")

	return &QuoteSanitizer{policy: p}
}

// Sanitize は許可リストに従ってHTMLをサニタイズし、テンプレートに埋め込めるHTMLを返す。
func (s *QuoteSanitizer) Sanitize(raw string) template.HTML {
	if raw == "" {
		return ""
	}
	return template.HTML(s.policy.Sanitize(raw))
}
