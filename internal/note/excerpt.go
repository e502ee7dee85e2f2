package note

import (
	"strings"
	"unicode/utf8"
)

// DefaultExcerptLength は一覧に表示する抜粋の最大文字数。
const DefaultExcerptLength = 140

// Excerpt は本文をmaxRunes文字以内の1行のテキストにして返す。
// 本文はプレーンテキストとして扱い、連続する空白は1つにまとめる。切り詰めた場合は末尾に"…"を付ける。
func Excerpt(content string, maxRunes int) string {
	text := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
