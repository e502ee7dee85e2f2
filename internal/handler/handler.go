// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/webnote/internal/middleware"
	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/view"
)

// Renderer はページとエラーページを書き込む。view.Rendererが実装する。
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, name string, page view.Page)
	Error(w http.ResponseWriter, r *http.Request, status int, appErr *model.AppError)
}

// handleServiceError はサービス層のエラーをエラーページとして書き込む。
// AppError以外のエラーは詳細をログにのみ記録し、汎用メッセージを表示する。
func handleServiceError(w http.ResponseWriter, r *http.Request, views Renderer, err error, fallback *model.AppError) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		views.Error(w, r, mapAppErrorToHTTPStatus(appErr), appErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	if fallback == nil {
		fallback = model.NewInternalError()
	}
	views.Error(w, r, http.StatusInternalServerError, fallback)
}

// mapAppErrorToHTTPStatus はAppErrorコードからHTTPステータスコードにマッピングする。
func mapAppErrorToHTTPStatus(appErr *model.AppError) int {
	switch appErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case model.ErrCodeNoteNotFound, model.ErrCodePageNotFound:
		return http.StatusNotFound
	case model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeUpstream, model.ErrCodeQuoteUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// currentIdentity は認証必須ルートで本人情報を取得する。
// 取得できない場合はサインイン画面へリダイレクトし、falseを返す。
func currentIdentity(w http.ResponseWriter, r *http.Request) (*middleware.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, pathLogin, http.StatusSeeOther)
		return nil, false
	}
	return identity, true
}

// redirectWithQuery はクエリパラメータ付きのURLへ303でリダイレクトする。
func redirectWithQuery(w http.ResponseWriter, r *http.Request, path, key, value string) {
	http.Redirect(w, r, path+"?"+url.Values{key: {value}}.Encode(), http.StatusSeeOther)
}
