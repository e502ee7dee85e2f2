// Package view はサーバーサイドレンダリングのHTMLテンプレートを提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/webnote/internal/middleware"
	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/note"
	"github.com/hitoshi/webnote/internal/quote"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページ名。templates/<name>.html に対応する。
const (
	PageIndex     = "index"
	PageAbout     = "about"
	PageRegister  = "register"
	PageLogin     = "login"
	PageProfile   = "profile"
	PageNotesList = "notes_list"
	PageNoteEdit  = "note_edit"
	PageInspire   = "inspire"
	PageError     = "error"
)

var pageNames = []string{
	PageIndex, PageAbout, PageRegister, PageLogin, PageProfile,
	PageNotesList, PageNoteEdit, PageInspire, PageError,
}

// MarkupSanitizer は外部から受け取ったHTMLを埋め込み可能な形に変換する。security.QuoteSanitizerが実装する。
type MarkupSanitizer interface {
	Sanitize(raw string) template.HTML
}

// Page はレイアウトと各ページテンプレートに渡す値。
// UserとCSRFTokenはRenderがリクエストコンテキストから設定する。
type Page struct {
	Title     string
	User      *model.User
	CSRFToken string
	Error     string
	Message   string
	Data      any
}

// AuthForm は登録・サインインフォームの再表示に使う入力値。パスワードは保持しない。
type AuthForm struct {
	Username string
	Email    string
}

// NotesList はノート一覧ページの値。
type NotesList struct {
	Notes []*model.Note
}

// NoteForm はノート編集ページの値。Note.IDが空の場合は新規作成フォームになる。
type NoteForm struct {
	Note           *model.Note
	MaxTitleLength int
}

// Inspiration は名言ページの値。
type Inspiration struct {
	Quote       *quote.Quote
	Attribution bool
}

// Renderer はページテンプレートを保持し、レスポンスに書き込む。
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
func NewRenderer(markup MarkupSanitizer, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	funcs := template.FuncMap{
		"excerpt": func(content string) string {
			return note.Excerpt(content, note.DefaultExcerptLength)
		},
		"noteText":   noteText,
		"quoteHTML":  markup.Sanitize,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("2006-01-02 15:04")
		},
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("layout").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("テンプレート %s のパースに失敗: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render はページを指定のステータスコードで書き込む。
// 実行に失敗した場合は途中までの出力を破棄し、500を返す。
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	tmpl, ok := v.pages[name]
	if !ok {
		v.logger.Error("unknown page template", slog.String("page", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		page.User = identity.User
	}
	page.CSRFToken = middleware.CSRFTokenFromContext(r.Context())

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		v.logger.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error はエラーページを書き込む。middleware.ErrorWriterとして使える。
func (v *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, appErr *model.AppError) {
	v.Render(w, r, status, PageError, Page{
		Title: http.StatusText(status),
		Data:  appErr,
	})
}

// noteText はプレーンテキストのノート本文をエスケープし、改行を<br>に変換する。
func noteText(content string) template.HTML {
	if content == "" {
		return ""
	}
	escaped := template.HTMLEscapeString(strings.ReplaceAll(content, "\r\n", "\n"))
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>\n"))
}
