package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/webnote/internal/metrics"
	"github.com/hitoshi/webnote/internal/middleware"
	"github.com/hitoshi/webnote/internal/session"
)

// リダイレクト先のパス。
const (
	pathHome      = "/"
	pathLogin     = "/users/login"
	pathProfile   = "/users/profile"
	pathNotesList = "/notes/list"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger      *slog.Logger
	Resolver    middleware.IdentityResolver
	Codec       *session.Codec
	CSRFConfig  middleware.CSRFConfig
	RateLimiter *middleware.RateLimiter
	Metrics     metrics.MetricsCollector
	Gatherer    prometheus.Gatherer
	Views       Renderer

	// 認証
	AuthService AuthServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// ノート
	NoteService NoteServiceInterface

	// その他
	Quotes        QuoteSource
	HealthChecker HealthChecker
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → Metrics → CSRF → Auth → RateLimit(General)
//
// 認証が必要なルートにはさらにRequireAuthを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	writeError := middleware.ErrorWriter(deps.Views.Error)
	csrfConfig := deps.CSRFConfig
	if csrfConfig.ErrorWriter == nil {
		csrfConfig.ErrorWriter = writeError
	}

	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(writeError))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewCSRFMiddleware(csrfConfig))
	r.Use(middleware.NewAuthMiddleware(deps.Resolver, deps.Codec))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.GeneralMiddleware())
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Codec, deps.Views)
	userHandler := NewUserHandler(deps.UserService, deps.Views)
	noteHandler := NewNoteHandler(deps.NoteService, deps.Views)
	miscHandler := NewMiscHandler(deps.Quotes, deps.HealthChecker, deps.Views)

	r.NotFound(miscHandler.NotFound)
	r.MethodNotAllowed(miscHandler.MethodNotAllowed)

	// --- 運用エンドポイント ---
	r.Get("/health", miscHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証不要のルート ---
	r.Get("/", miscHandler.Home)
	r.Get("/about", miscHandler.About)
	r.Get("/api/inspire", miscHandler.Inspire)

	r.Route("/users", func(r chi.Router) {
		r.Get("/about", miscHandler.About)

		r.Get("/register", authHandler.RegisterForm)
		r.Get("/login", authHandler.LoginForm)
		r.Post("/logout", authHandler.Logout)

		// 登録・サインインは試行専用のレート制限を追加
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.AuthAttemptMiddleware())
			}
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireAuthMiddleware(deps.Resolver, deps.Codec, pathLogin))

			r.Get("/profile", userHandler.Profile)
			r.Post("/profile/name", userHandler.UpdateName)
			r.Post("/profile/password", userHandler.ChangePassword)
		})
	})

	r.Route("/notes", func(r chi.Router) {
		r.Use(middleware.NewRequireAuthMiddleware(deps.Resolver, deps.Codec, pathLogin))

		r.Get("/", noteHandler.Index)
		r.Post("/", noteHandler.Create)
		r.Get("/list", noteHandler.List)
		r.Get("/edit", noteHandler.Edit)

		r.Route("/{id}", func(r chi.Router) {
			r.Post("/edit", noteHandler.Update)
			r.Post("/delete", noteHandler.Delete)
		})
	})

	return r
}
