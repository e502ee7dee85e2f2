// Package session はアクセストークン・リフレッシュトークンをHTTP Cookieとして
// 読み書きするコーデックを提供する。
package session

import (
	"net/http"
	"time"

	"github.com/hitoshi/webnote/internal/model"
)

const (
	// AccessTokenCookie はアクセストークンを保持するCookieの名前。
	AccessTokenCookie = "sb-access-token"
	// RefreshTokenCookie はリフレッシュトークンを保持するCookieの名前。
	RefreshTokenCookie = "sb-refresh-token"
)

// Decode はCookieヘッダー文字列から2つのトークンを取り出す。
// 値が存在しない、または不正な形式の場合は空文字として扱い、エラーにはしない。
func Decode(rawCookieHeader string) model.Session {
	if rawCookieHeader == "" {
		return model.Session{}
	}
	r := &http.Request{Header: http.Header{"Cookie": {rawCookieHeader}}}
	return FromRequest(r)
}

// FromRequest はリクエストのCookieからトークンの組を取り出す。
func FromRequest(r *http.Request) model.Session {
	return model.Session{
		AccessToken:  cookieValue(r, AccessTokenCookie),
		RefreshToken: cookieValue(r, RefreshTokenCookie),
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Codec はセッションCookieの属性を保持し、Set-Cookieを生成する。
type Codec struct {
	Secure bool // 本番環境でのみtrue
}

// NewCodec はCodecを生成する。
func NewCodec(secure bool) *Codec {
	return &Codec{Secure: secure}
}

// Encode はSet-Cookie用のCookieを生成する。
// Path "/", HttpOnly, SameSite=Lax を常に付与する。
// expiresがゼロ値の場合はブラウザセッションCookieになる。
func (c *Codec) Encode(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Write は2つのトークンCookieをレスポンスに書き込む。
func (c *Codec) Write(w http.ResponseWriter, s model.Session) {
	http.SetCookie(w, c.Encode(AccessTokenCookie, s.AccessToken, time.Time{}))
	http.SetCookie(w, c.Encode(RefreshTokenCookie, s.RefreshToken, time.Time{}))
}

// Clear は2つのトークンCookieを空値・期限切れ日時で上書きする。
func (c *Codec) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		cookie := c.Encode(name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}
