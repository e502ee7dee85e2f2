package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/note"
	"github.com/hitoshi/webnote/internal/view"
)

// NoteServiceInterface はノートハンドラーが必要とするサービスインターフェース。
// すべての操作はリクエスト元ユーザーのノートに限定される。
type NoteServiceInterface interface {
	List(ctx context.Context, p model.Principal) ([]*model.Note, error)
	Get(ctx context.Context, p model.Principal, id string) (*model.Note, error)
	Create(ctx context.Context, p model.Principal, in model.NoteInput) (*model.Note, error)
	Update(ctx context.Context, p model.Principal, id string, in model.NoteInput) (*model.Note, error)
	Delete(ctx context.Context, p model.Principal, id string) error
}

// NoteHandler はノート管理のHTTPハンドラー。
type NoteHandler struct {
	service NoteServiceInterface
	views   Renderer
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface, views Renderer) *NoteHandler {
	return &NoteHandler{
		service: service,
		views:   views,
	}
}

// Index はノート一覧へリダイレクトする。
// GET /notes
func (h *NoteHandler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, pathNotesList, http.StatusFound)
}

// List はリクエスト元ユーザーのノート一覧を作成日時の降順で表示する。
// GET /notes/list
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	notes, err := h.service.List(r.Context(), identity.Principal())
	if err != nil {
		handleServiceError(w, r, h.views, err, model.NewUpstreamError(note.MsgNoteUnavailable))
		return
	}

	h.views.Render(w, r, http.StatusOK, view.PageNotesList, view.Page{
		Title: "Notes",
		Data:  view.NotesList{Notes: notes},
	})
}

// Edit はノートの編集フォームを表示する。
// idが指定され、リクエスト元ユーザーのノートが見つかった場合は内容を埋めたフォーム、
// それ以外は空の新規作成フォームを表示する。
// GET /notes/edit?id=...
func (h *NoteHandler) Edit(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	form := view.NoteForm{Note: &model.Note{}, MaxTitleLength: note.MaxTitleLength}
	title := "New note"

	if id := r.URL.Query().Get("id"); id != "" {
		n, err := h.service.Get(r.Context(), identity.Principal(), id)
		if err != nil {
			slog.Info("note edit: falling back to blank form",
				slog.String("user_id", identity.User.ID),
				slog.String("note_id", id),
				slog.String("error", err.Error()),
			)
		} else {
			form.Note = n
			title = "Edit note"
		}
	}

	h.views.Render(w, r, http.StatusOK, view.PageNoteEdit, view.Page{
		Title: title,
		Data:  form,
	})
}

// Create はノートを作成し、一覧へリダイレクトする。
// POST /notes
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	if _, err := h.service.Create(r.Context(), identity.Principal(), noteInput(r)); err != nil {
		handleServiceError(w, r, h.views, err, nil)
		return
	}

	http.Redirect(w, r, pathNotesList, http.StatusSeeOther)
}

// Update はノートを更新し、一覧へリダイレクトする。
// 他ユーザーのノートは更新対象に含まれず、404を表示する。
// POST /notes/{id}/edit
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.service.Update(r.Context(), identity.Principal(), id, noteInput(r)); err != nil {
		handleServiceError(w, r, h.views, err, nil)
		return
	}

	http.Redirect(w, r, pathNotesList, http.StatusSeeOther)
}

// Delete はノートを削除し、一覧へリダイレクトする。
// 他ユーザーのノートは削除対象に含まれず、404を表示する。
// POST /notes/{id}/delete
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), identity.Principal(), id); err != nil {
		handleServiceError(w, r, h.views, err, nil)
		return
	}

	http.Redirect(w, r, pathNotesList, http.StatusSeeOther)
}

func noteInput(r *http.Request) model.NoteInput {
	return model.NoteInput{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
	}
}
