package middleware

import (
	"net/http"

	"github.com/hitoshi/webnote/internal/model"
)

// ErrorWriter はエラーページを書き込む関数。
// 本番ではview.Renderer.Errorを渡し、HTMLのエラーページを表示する。
type ErrorWriter func(w http.ResponseWriter, r *http.Request, statusCode int, appErr *model.AppError)

// WriteErrorResponse はErrorWriter未設定時に使うプレーンテキストのエラーレスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーにはAppErrorのメッセージと対処方法だけを返す。
func WriteErrorResponse(w http.ResponseWriter, _ *http.Request, statusCode int, appErr *model.AppError) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(appErr.Message + "\n" + appErr.Action + "\n"))
}

// orDefault はnilの場合にWriteErrorResponseを返す。
func (ew ErrorWriter) orDefault() ErrorWriter {
	if ew == nil {
		return WriteErrorResponse
	}
	return ew
}
