// Package model はドメインモデルを定義する。
package model

import "strings"

// fallbackDisplayName は表示名を決定できない場合に使用する名前。
const fallbackDisplayName = "User"

// User はIdPのユーザーレコードから導出した読み取り専用の射影を表す。
// アプリケーションでは永続化せず、リクエストごとにアクセストークンから再計算する。
type User struct {
	ID    string
	Email string
	Name  string
}

// NewUser はIdPのユーザー属性から正規化済みのUserを生成する。
// 表示名は display_name → username → メールアドレスのローカル部 → "User" の順で決定する。
func NewUser(id, email string, metadata map[string]any) *User {
	return &User{
		ID:    id,
		Email: email,
		Name:  DisplayName(email, metadata),
	}
}

// DisplayName はユーザー属性から表示名を決定する。
func DisplayName(email string, metadata map[string]any) string {
	for _, key := range []string{"display_name", "username"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}

	if email != "" {
		local, _, _ := strings.Cut(email, "@")
		if local != "" {
			return local
		}
	}

	return fallbackDisplayName
}

// Session はアクセストークンとリフレッシュトークンの組を表す。
// ブラウザのCookieにのみ保持し、サーバー側では永続化しない。
type Session struct {
	AccessToken  string
	RefreshToken string
}

// HasAccessToken はアクセストークンが存在するかどうかを返す。
func (s Session) HasAccessToken() bool {
	return s.AccessToken != ""
}

// HasRefreshToken はリフレッシュトークンが存在するかどうかを返す。
func (s Session) HasRefreshToken() bool {
	return s.RefreshToken != ""
}

// Principal はストア呼び出しに渡すリクエスト元ユーザーを表す。
// REST ストアはAccessTokenを転送し、ホスト側の行レベルセキュリティも適用させる。
type Principal struct {
	UserID      string
	AccessToken string
}
