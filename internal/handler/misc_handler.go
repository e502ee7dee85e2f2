package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/quote"
	"github.com/hitoshi/webnote/internal/view"
)

// healthCheckTimeout は/healthでの依存先確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// QuoteSource は名言ページが必要とするインターフェース。quote.Clientが実装する。
type QuoteSource interface {
	Random(ctx context.Context) (*quote.Quote, error)
	RequiresAttribution() bool
}

// HealthChecker は依存先の疎通を確認する。
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckFunc は関数をHealthCheckerとして扱うためのアダプター。
type HealthCheckFunc func(ctx context.Context) error

// CheckHealth はf(ctx)を呼び出す。
func (f HealthCheckFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

// MiscHandler はホーム・概要・名言・ヘルスチェックなどのHTTPハンドラー。
type MiscHandler struct {
	quotes QuoteSource
	health HealthChecker
	views  Renderer
}

// NewMiscHandler はMiscHandlerを生成する。healthはnilでもよい。
func NewMiscHandler(quotes QuoteSource, health HealthChecker, views Renderer) *MiscHandler {
	return &MiscHandler{
		quotes: quotes,
		health: health,
		views:  views,
	}
}

// Home はホーム画面を表示する。
// GET /
func (h *MiscHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, view.PageIndex, view.Page{Title: "Home"})
}

// About は概要画面を表示する。
// GET /about, GET /users/about
func (h *MiscHandler) About(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, view.PageAbout, view.Page{Title: "About"})
}

// Inspire はランダムな名言を表示する。取得に失敗した場合は502で再試行を促す。
// GET /api/inspire
func (h *MiscHandler) Inspire(w http.ResponseWriter, r *http.Request) {
	q, err := h.quotes.Random(r.Context())
	if err != nil {
		slog.Error("failed to load inspiration", slog.String("error", err.Error()))
		h.views.Render(w, r, http.StatusBadGateway, view.PageInspire, view.Page{
			Title: "Inspiration",
			Error: model.NewQuoteUnavailableError().Message,
			Data:  view.Inspiration{Attribution: true},
		})
		return
	}

	h.views.Render(w, r, http.StatusOK, view.PageInspire, view.Page{
		Title: "Inspiration",
		Data: view.Inspiration{
			Quote:       q,
			Attribution: h.quotes.RequiresAttribution(),
		},
	})
}

// Health は依存先の疎通を確認し、200 "ok" または503を返す。
// GET /health
func (h *MiscHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.health.CheckHealth(ctx); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// NotFound は存在しないページに404のエラーページを表示する。
func (h *MiscHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.views.Error(w, r, http.StatusNotFound, model.NewPageNotFoundError())
}

// MethodNotAllowed は許可されていないメソッドに405のエラーページを表示する。
func (h *MiscHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.views.Error(w, r, http.StatusMethodNotAllowed, model.NewPageNotFoundError())
}
