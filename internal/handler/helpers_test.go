package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/hitoshi/webnote/internal/middleware"
	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/view"
)

// stubRenderer はRendererのテスト用実装。最後に描画した内容を記録する。
type stubRenderer struct {
	status   int
	pageName string
	page     view.Page
	appErr   *model.AppError
}

func (s *stubRenderer) Render(w http.ResponseWriter, _ *http.Request, status int, name string, page view.Page) {
	s.status = status
	s.pageName = name
	s.page = page
	w.WriteHeader(status)
}

func (s *stubRenderer) Error(w http.ResponseWriter, _ *http.Request, status int, appErr *model.AppError) {
	s.status = status
	s.pageName = view.PageError
	s.appErr = appErr
	w.WriteHeader(status)
}

// withIdentity はリクエストのコンテキストに認証済みユーザーを設定する。
func withIdentity(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithIdentity(r.Context(), &middleware.Identity{
		User:        &model.User{ID: userID, Email: userID + "@example.com", Name: userID},
		AccessToken: "token-" + userID,
	})
	return r.WithContext(ctx)
}

// newFormRequest はフォームをボディに持つPOSTリクエストを生成する。
func newFormRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
