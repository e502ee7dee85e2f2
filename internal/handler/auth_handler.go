package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/webnote/internal/auth"
	"github.com/hitoshi/webnote/internal/middleware"
	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/session"
	"github.com/hitoshi/webnote/internal/view"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

// AuthHandler は登録・サインイン・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	codec   *session.Codec
	views   Renderer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, codec *session.Codec, views Renderer) *AuthHandler {
	return &AuthHandler{
		service: service,
		codec:   codec,
		views:   views,
	}
}

// RegisterForm は登録フォームを表示する。
// GET /users/register
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, view.PageRegister, view.Page{
		Title: "Register",
		Data:  view.AuthForm{},
	})
}

// Register はユーザーを登録し、サインイン画面へリダイレクトする。
// 入力不足やIdPの拒否はメッセージ付きでフォームを再表示する。
// POST /users/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in := auth.RegisterInput{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	if _, err := h.service.Register(r.Context(), in); err != nil {
		status, message := http.StatusBadRequest, auth.MsgRegistrationFailed
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		} else {
			slog.Error("registration failed", slog.String("error", err.Error()))
			status = http.StatusServiceUnavailable
		}

		h.views.Render(w, r, status, view.PageRegister, view.Page{
			Title: "Register",
			Error: message,
			Data:  view.AuthForm{Username: in.Username, Email: in.Email},
		})
		return
	}

	http.Redirect(w, r, pathLogin, http.StatusSeeOther)
}

// LoginForm はサインインフォームを表示する。サインイン済みの場合はノート一覧へ移動する。
// GET /users/login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, pathNotesList, http.StatusFound)
		return
	}

	h.views.Render(w, r, http.StatusOK, view.PageLogin, view.Page{
		Title: "Login",
		Data:  view.AuthForm{},
	})
}

// Login はパスワード認証を行い、2つのトークンCookieを設定してノート一覧へリダイレクトする。
// 失敗時は401でフォームを再表示し、Cookieは設定しない。
// POST /users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")

	sess, err := h.service.Login(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		message := auth.MsgInvalidCredentials
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		}

		h.views.Render(w, r, http.StatusUnauthorized, view.PageLogin, view.Page{
			Title: "Login",
			Error: message,
			Data:  view.AuthForm{Email: email},
		})
		return
	}

	h.codec.Write(w, *sess)
	http.Redirect(w, r, pathNotesList, http.StatusSeeOther)
}

// Logout はIdPのセッションを失効させ、2つのトークンCookieを削除してホームへリダイレクトする。
// 失効に失敗してもCookieは必ず削除する。
// POST /users/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	accessToken := session.FromRequest(r).AccessToken
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		accessToken = identity.AccessToken
	}

	if err := h.service.Logout(r.Context(), accessToken); err != nil {
		slog.Warn("logout: upstream sign-out failed, clearing cookies anyway",
			slog.String("error", err.Error()),
		)
	}

	h.codec.Clear(w)
	http.Redirect(w, r, pathHome, http.StatusSeeOther)
}
