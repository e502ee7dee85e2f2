package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/webnote/internal/auth"
	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/session"
)

// IdentityResolver はCookieのトークンの組からリクエスト元を特定する。
// auth.Resolverが実装する。
type IdentityResolver interface {
	Resolve(ctx context.Context, current model.Session) auth.Resolution
}

// NewAuthMiddleware は全ルート共通の本人確認ミドルウェアを返す。
// トークンが更新された場合は両方のCookieを書き換え、
// 特定できたユーザーをリクエストコンテキストに注入する。
// 本人確認に失敗しても未認証として後続に渡し、レスポンスは書き込まない。
func NewAuthMiddleware(resolver IdentityResolver, codec *session.Codec) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := resolveInto(w, r, resolver, codec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAuthMiddleware は認証必須ルート用のミドルウェアを返す。
// 同一リクエスト内の本人確認結果があればそれを使い、なければ同じResolverで確認する。
// ユーザーを特定できない場合はloginPathへ303でリダイレクトする。
func NewRequireAuthMiddleware(resolver IdentityResolver, codec *session.Codec, loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := resolutionFromContext(ctx); !ok {
				ctx = resolveInto(w, r, resolver, codec)
			}

			if _, ok := IdentityFromContext(ctx); !ok {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveInto は本人確認を1回行い、結果を格納したコンテキストを返す。
func resolveInto(w http.ResponseWriter, r *http.Request, resolver IdentityResolver, codec *session.Codec) context.Context {
	res := resolver.Resolve(r.Context(), session.FromRequest(r))

	// 更新済みの組は旧リフレッシュトークンが使えなくなるため、
	// ユーザーの再取得に失敗した場合でも書き戻す
	if res.Rotated {
		codec.Write(w, res.Session)
	}

	ctx := contextWithResolution(r.Context(), &res)
	if res.Authenticated() {
		ctx = ContextWithIdentity(ctx, &Identity{
			User:        res.User,
			AccessToken: res.Session.AccessToken,
		})
	}
	return ctx
}
