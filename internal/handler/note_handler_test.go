package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/note"
	"github.com/hitoshi/webnote/internal/view"
)

// --- モック定義 ---

// mockNoteService はNoteServiceInterfaceのモック実装。
type mockNoteService struct {
	listFn   func(ctx context.Context, p model.Principal) ([]*model.Note, error)
	getFn    func(ctx context.Context, p model.Principal, id string) (*model.Note, error)
	createFn func(ctx context.Context, p model.Principal, in model.NoteInput) (*model.Note, error)
	updateFn func(ctx context.Context, p model.Principal, id string, in model.NoteInput) (*model.Note, error)
	deleteFn func(ctx context.Context, p model.Principal, id string) error
}

func (m *mockNoteService) List(ctx context.Context, p model.Principal) ([]*model.Note, error) {
	if m.listFn != nil {
		return m.listFn(ctx, p)
	}
	return nil, nil
}

func (m *mockNoteService) Get(ctx context.Context, p model.Principal, id string) (*model.Note, error) {
	if m.getFn != nil {
		return m.getFn(ctx, p, id)
	}
	return nil, model.NewNoteNotFoundError(id)
}

func (m *mockNoteService) Create(ctx context.Context, p model.Principal, in model.NoteInput) (*model.Note, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p, in)
	}
	return &model.Note{ID: "1", Title: in.Title, Content: in.Content, OwnerID: p.UserID}, nil
}

func (m *mockNoteService) Update(ctx context.Context, p model.Principal, id string, in model.NoteInput) (*model.Note, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, p, id, in)
	}
	return &model.Note{ID: id, Title: in.Title, Content: in.Content, OwnerID: p.UserID}, nil
}

func (m *mockNoteService) Delete(ctx context.Context, p model.Principal, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, p, id)
	}
	return nil
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- GET /notes テスト ---

func TestNoteHandler_Index_RedirectsToList(t *testing.T) {
	h := NewNoteHandler(&mockNoteService{}, &stubRenderer{})

	w := httptest.NewRecorder()
	h.Index(w, withIdentity(httptest.NewRequest(http.MethodGet, "/notes", nil), "user-1"))

	if w.Code != http.StatusFound || w.Header().Get("Location") != pathNotesList {
		t.Errorf("status = %d Location = %q", w.Code, w.Header().Get("Location"))
	}
}

// --- GET /notes/list テスト ---

func TestNoteHandler_List_Success(t *testing.T) {
	notes := []*model.Note{{ID: "2", Title: "second"}, {ID: "1", Title: "first"}}
	svc := &mockNoteService{
		listFn: func(_ context.Context, p model.Principal) ([]*model.Note, error) {
			if p.UserID != "user-1" {
				t.Errorf("UserID = %q, want %q", p.UserID, "user-1")
			}
			return notes, nil
		},
	}
	views := &stubRenderer{}
	h := NewNoteHandler(svc, views)

	w := httptest.NewRecorder()
	h.List(w, withIdentity(httptest.NewRequest(http.MethodGet, "/notes/list", nil), "user-1"))

	if w.Code != http.StatusOK || views.pageName != view.PageNotesList {
		t.Fatalf("status = %d page = %q", w.Code, views.pageName)
	}
	data, ok := views.page.Data.(view.NotesList)
	if !ok || len(data.Notes) != 2 || data.Notes[0].ID != "2" {
		t.Errorf("Data = %#v", views.page.Data)
	}
}

func TestNoteHandler_List_StoreFailure_RendersErrorPage(t *testing.T) {
	svc := &mockNoteService{
		listFn: func(context.Context, model.Principal) ([]*model.Note, error) {
			return nil, errors.New("connection reset")
		},
	}
	views := &stubRenderer{}
	h := NewNoteHandler(svc, views)

	w := httptest.NewRecorder()
	h.List(w, withIdentity(httptest.NewRequest(http.MethodGet, "/notes/list", nil), "user-1"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if views.appErr == nil || views.appErr.Message != note.MsgNoteUnavailable {
		t.Errorf("appErr = %+v", views.appErr)
	}
}

// --- GET /notes/edit テスト ---

func TestNoteHandler_Edit(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		getErr    error
		wantID    string
		wantTitle string
	}{
		{name: "idなしは新規作成フォーム", query: "", wantTitle: "New note"},
		{name: "自分のノートは内容を表示する", query: "?id=7", wantID: "7", wantTitle: "Edit note"},
		{name: "見つからない場合は空のフォームに戻る", query: "?id=99", getErr: model.NewNoteNotFoundError("99"), wantTitle: "New note"},
		{name: "ストア障害でも空のフォームに戻る", query: "?id=7", getErr: errors.New("timeout"), wantTitle: "New note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockNoteService{
				getFn: func(_ context.Context, p model.Principal, id string) (*model.Note, error) {
					if tt.getErr != nil {
						return nil, tt.getErr
					}
					return &model.Note{ID: id, Title: "title", OwnerID: p.UserID}, nil
				},
			}
			views := &stubRenderer{}
			h := NewNoteHandler(svc, views)

			w := httptest.NewRecorder()
			h.Edit(w, withIdentity(httptest.NewRequest(http.MethodGet, "/notes/edit"+tt.query, nil), "user-1"))

			if w.Code != http.StatusOK || views.pageName != view.PageNoteEdit {
				t.Fatalf("status = %d page = %q", w.Code, views.pageName)
			}
			form := views.page.Data.(view.NoteForm)
			if form.Note == nil || form.Note.ID != tt.wantID {
				t.Errorf("Note = %+v, want ID %q", form.Note, tt.wantID)
			}
			if form.MaxTitleLength != note.MaxTitleLength {
				t.Errorf("MaxTitleLength = %d", form.MaxTitleLength)
			}
			if views.page.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", views.page.Title, tt.wantTitle)
			}
		})
	}
}

// --- POST /notes テスト ---

func TestNoteHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "成功時は一覧へリダイレクトする", wantStatus: http.StatusSeeOther},
		{name: "検証エラーは400", err: model.NewValidationError(note.MsgTitleRequired), wantStatus: http.StatusBadRequest},
		{name: "ストア障害は500", err: errors.New("insert failed"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.NoteInput
			svc := &mockNoteService{
				createFn: func(_ context.Context, p model.Principal, in model.NoteInput) (*model.Note, error) {
					got = in
					if tt.err != nil {
						return nil, tt.err
					}
					return &model.Note{ID: "1", OwnerID: p.UserID}, nil
				},
			}
			views := &stubRenderer{}
			h := NewNoteHandler(svc, views)

			req := newFormRequest("/notes", url.Values{"title": {"Hello"}, "content": {"World"}})
			w := httptest.NewRecorder()

			h.Create(w, withIdentity(req, "user-1"))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got.Title != "Hello" || got.Content != "World" {
				t.Errorf("input = %+v", got)
			}
			if tt.err == nil && w.Header().Get("Location") != pathNotesList {
				t.Errorf("Location = %q", w.Header().Get("Location"))
			}
			if tt.err != nil && views.pageName != view.PageError {
				t.Errorf("page = %q, want error page", views.pageName)
			}
		})
	}
}

// --- POST /notes/{id}/edit テスト ---

func TestNoteHandler_Update_UsesURLParam(t *testing.T) {
	var gotID string
	svc := &mockNoteService{
		updateFn: func(_ context.Context, _ model.Principal, id string, in model.NoteInput) (*model.Note, error) {
			gotID = id
			return &model.Note{ID: id}, nil
		},
	}
	h := NewNoteHandler(svc, &stubRenderer{})

	req := newFormRequest("/notes/42/edit", url.Values{"title": {"T"}, "content": {"C"}})
	req = withURLParam(withIdentity(req, "user-1"), "id", "42")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if gotID != "42" {
		t.Errorf("id = %q, want %q", gotID, "42")
	}
}

func TestNoteHandler_Update_NotFound_Returns404(t *testing.T) {
	svc := &mockNoteService{
		updateFn: func(_ context.Context, _ model.Principal, id string, _ model.NoteInput) (*model.Note, error) {
			return nil, model.NewNoteNotFoundError(id)
		},
	}
	views := &stubRenderer{}
	h := NewNoteHandler(svc, views)

	req := newFormRequest("/notes/42/edit", url.Values{"title": {"T"}})
	req = withURLParam(withIdentity(req, "user-2"), "id", "42")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if views.appErr == nil || views.appErr.Code != model.ErrCodeNoteNotFound {
		t.Errorf("appErr = %+v", views.appErr)
	}
}

// --- POST /notes/{id}/delete テスト ---

func TestNoteHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "成功時は一覧へリダイレクトする", wantStatus: http.StatusSeeOther},
		{name: "他ユーザーのノートは404", err: model.NewNoteNotFoundError("42"), wantStatus: http.StatusNotFound},
		{name: "ストア障害は500", err: errors.New("delete failed"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockNoteService{
				deleteFn: func(_ context.Context, p model.Principal, id string) error {
					if id != "42" || p.UserID != "user-1" {
						t.Errorf("Delete(%+v, %q)", p, id)
					}
					return tt.err
				},
			}
			h := NewNoteHandler(svc, &stubRenderer{})

			req := newFormRequest("/notes/42/delete", url.Values{})
			req = withURLParam(withIdentity(req, "user-1"), "id", "42")
			w := httptest.NewRecorder()

			h.Delete(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestNoteHandler_Unauthenticated_RedirectsToLogin(t *testing.T) {
	h := NewNoteHandler(&mockNoteService{}, &stubRenderer{})

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/notes/list", nil))

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != pathLogin {
		t.Errorf("status = %d Location = %q", w.Code, w.Header().Get("Location"))
	}
}
