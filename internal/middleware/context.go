// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/hitoshi/webnote/internal/auth"
	"github.com/hitoshi/webnote/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// identityContextKey はリクエストコンテキストに本人情報を格納するためのキー。
	identityContextKey = contextKey("identity")
	// resolutionContextKey は1リクエスト内で本人確認の結果を共有するためのキー。
	resolutionContextKey = contextKey("auth_resolution")
	// requestLogContextKey はリクエストログに載せる値を格納するためのキー。
	requestLogContextKey = contextKey("request_log")
	// csrfTokenContextKey はフォームに埋め込むCSRFトークンを格納するためのキー。
	csrfTokenContextKey = contextKey("csrf_token")
)

// Identity は認証済みのリクエスト元を表す。
type Identity struct {
	User        *model.User
	AccessToken string
}

// Principal はストア呼び出しに渡すリクエスト元を返す。
func (i *Identity) Principal() model.Principal {
	return model.Principal{UserID: i.User.ID, AccessToken: i.AccessToken}
}

// IdentityFromContext はリクエストコンテキストから本人情報を取得する。
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || id == nil || id.User == nil {
		return nil, false
	}
	return id, true
}

// ContextWithIdentity はコンテキストに本人情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	if id != nil && id.User != nil {
		setLogUserID(ctx, id.User.ID)
	}
	return context.WithValue(ctx, identityContextKey, id)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 本人確認ミドルウェアを通過し、ユーザーを特定できたリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok || id.User.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return id.User.ID, nil
}

func resolutionFromContext(ctx context.Context) (*auth.Resolution, bool) {
	res, ok := ctx.Value(resolutionContextKey).(*auth.Resolution)
	return res, ok && res != nil
}

func contextWithResolution(ctx context.Context, res *auth.Resolution) context.Context {
	return context.WithValue(ctx, resolutionContextKey, res)
}

// CSRFTokenFromContext はフォームに埋め込むCSRFトークンを取得する。
// CSRFミドルウェアを通過していない場合は空文字を返す。
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}

// ContextWithCSRFToken はコンテキストにCSRFトークンを注入する。
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenContextKey, token)
}
