package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error はSupabase（GoTrue / PostgREST）がエラーステータスで応答したことを表す。
type Error struct {
	Status  int    // HTTPステータスコード
	Code    string // error_code / PostgRESTのcode
	Message string // ユーザーに提示可能なメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Message)
}

// IsRejected は資格情報・トークン・入力がサービス側で拒否されたかどうかを返す。
// 4xx（408, 429を除く）を拒否とみなす。
func IsRejected(err error) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Status == http.StatusRequestTimeout || se.Status == http.StatusTooManyRequests {
		return false
	}
	return se.Status >= 400 && se.Status < 500
}

// IsTransient はネットワークエラーや5xxなど、再試行で回復しうる失敗かどうかを返す。
func IsTransient(err error) bool {
	return err != nil && !IsRejected(err)
}

// MessageOf はエラーからユーザー向けメッセージを取り出す。
// Supabaseのエラーでない場合はfallbackを返す。
func MessageOf(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}

// errorBody はGoTrueとPostgRESTのエラーレスポンスの和集合。
type errorBody struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Code             json.RawMessage `json:"code"`
}

// parseError はエラーレスポンスのボディから*Errorを組み立てる。
// ボディがJSONでない場合はステータステキストをメッセージにする。
func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var b errorBody
	if err := json.Unmarshal(body, &b); err == nil {
		e.Message = firstNonEmpty(b.ErrorDescription, b.Msg, b.Message, b.Error)
		e.Code = b.ErrorCode
		if e.Code == "" && len(b.Code) > 0 {
			// PostgRESTは文字列、GoTrueは数値でcodeを返す
			var s string
			if json.Unmarshal(b.Code, &s) == nil {
				e.Code = s
			}
		}
		if e.Code == "" && b.Error != "" && b.Error != e.Message {
			e.Code = b.Error
		}
	}

	if e.Message == "" {
		e.Message = strings.TrimSpace(http.StatusText(status))
	}
	return e
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
