package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/user"
	"github.com/hitoshi/webnote/internal/view"
)

// UserServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	UpdateName(ctx context.Context, p model.Principal, displayName string) (string, error)
	ChangePassword(ctx context.Context, p model.Principal, in user.PasswordChange) (string, error)
}

// UserHandler はプロフィール管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	views   Renderer
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, views Renderer) *UserHandler {
	return &UserHandler{
		service: service,
		views:   views,
	}
}

// Profile はプロフィール画面を表示する。
// GET /users/profile?message=...&error=...
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentIdentity(w, r); !ok {
		return
	}

	q := r.URL.Query()
	h.views.Render(w, r, http.StatusOK, view.PageProfile, view.Page{
		Title:   "Profile",
		Message: q.Get("message"),
		Error:   q.Get("error"),
	})
}

// UpdateName は表示名を更新し、結果メッセージ付きでプロフィール画面へリダイレクトする。
// POST /users/profile/name
func (h *UserHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	msg, err := h.service.UpdateName(r.Context(), identity.Principal(), r.PostFormValue("displayName"))
	h.redirectResult(w, r, msg, err)
}

// ChangePassword はパスワードを変更し、結果メッセージ付きでプロフィール画面へリダイレクトする。
// POST /users/profile/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	msg, err := h.service.ChangePassword(r.Context(), identity.Principal(), user.PasswordChange{
		CurrentPassword: r.PostFormValue("currentPassword"),
		NewPassword:     r.PostFormValue("newPassword"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	})
	h.redirectResult(w, r, msg, err)
}

func (h *UserHandler) redirectResult(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if err != nil {
		redirectWithQuery(w, r, pathProfile, "error", user.DisplayMessage(err))
		return
	}
	redirectWithQuery(w, r, pathProfile, "message", msg)
}
