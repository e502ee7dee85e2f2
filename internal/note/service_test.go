package note

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/repository"
)

// --- モック定義 ---

type mockNoteRepo struct {
	listFn   func(ctx context.Context, p model.Principal) ([]*model.Note, error)
	findFn   func(ctx context.Context, p model.Principal, id string) (*model.Note, error)
	createFn func(ctx context.Context, p model.Principal, in model.NoteInput) (*model.Note, error)
	updateFn func(ctx context.Context, p model.Principal, id string, in model.NoteInput) (*model.Note, error)
	deleteFn func(ctx context.Context, p model.Principal, id string) error

	createCalls int
	updateCalls int
}

func (m *mockNoteRepo) ListByOwner(ctx context.Context, p model.Principal) ([]*model.Note, error) {
	if m.listFn != nil {
		return m.listFn(ctx, p)
	}
	return []*model.Note{}, nil
}

func (m *mockNoteRepo) FindByIDAndOwner(ctx context.Context, p model.Principal, id string) (*model.Note, error) {
	if m.findFn != nil {
		return m.findFn(ctx, p, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockNoteRepo) Create(ctx context.Context, p model.Principal, in model.NoteInput) (*model.Note, error) {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, p, in)
	}
	return &model.Note{ID: "n1", OwnerID: p.UserID, Title: in.Title, Content: in.Content}, nil
}

func (m *mockNoteRepo) UpdateByIDAndOwner(ctx context.Context, p model.Principal, id string, in model.NoteInput) (*model.Note, error) {
	m.updateCalls++
	if m.updateFn != nil {
		return m.updateFn(ctx, p, id, in)
	}
	return &model.Note{ID: id, OwnerID: p.UserID, Title: in.Title, Content: in.Content}, nil
}

func (m *mockNoteRepo) DeleteByIDAndOwner(ctx context.Context, p model.Principal, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, p, id)
	}
	return nil
}

type mockRecorder struct {
	ops []string
}

func (m *mockRecorder) RecordNoteMutation(op string) {
	m.ops = append(m.ops, op)
}

var userA = model.Principal{UserID: "user-a", AccessToken: "tok-a"}

func appErrorCode(err error) string {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// --- テスト ---

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		input     model.NoteInput
		wantMsg   string
		wantTitle string
	}{
		{name: "正常", input: model.NoteInput{Title: "  Groceries  ", Content: "milk"}, wantTitle: "Groceries"},
		{name: "タイトル空", input: model.NoteInput{Title: "", Content: "x"}, wantMsg: MsgTitleRequired},
		{name: "タイトル空白のみ", input: model.NoteInput{Title: " \t "}, wantMsg: MsgTitleRequired},
		{name: "タイトル200文字は許可", input: model.NoteInput{Title: strings.Repeat("あ", 200)}, wantTitle: strings.Repeat("あ", 200)},
		{name: "タイトル201文字", input: model.NoteInput{Title: strings.Repeat("a", 201)}, wantMsg: MsgTitleTooLong},
		{name: "本文超過", input: model.NoteInput{Title: "t", Content: strings.Repeat("x", MaxContentLength+1)}, wantMsg: MsgContentTooLong},
		{name: "本文は空でもよい", input: model.NoteInput{Title: "t"}, wantTitle: "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.input)
			if tt.wantMsg != "" {
				var appErr *model.AppError
				if !errors.As(err, &appErr) || appErr.Message != tt.wantMsg {
					t.Fatalf("err = %v, want message %q", err, tt.wantMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
		})
	}
}

func TestCreate_InvalidInput_DoesNotCallRepo(t *testing.T) {
	repo := &mockNoteRepo{}
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), userA, model.NoteInput{Title: ""})

	if appErrorCode(err) != model.ErrCodeValidation {
		t.Errorf("err = %v, want validation error", err)
	}
	if repo.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", repo.createCalls)
	}
}

func TestCreate_RecordsMutation(t *testing.T) {
	repo := &mockNoteRepo{}
	rec := &mockRecorder{}
	svc := NewService(repo, rec)

	n, err := svc.Create(context.Background(), userA, model.NoteInput{Title: " hello ", Content: "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Title != "hello" || n.OwnerID != userA.UserID {
		t.Errorf("note = %+v", n)
	}
	if len(rec.ops) != 1 || rec.ops[0] != "create" {
		t.Errorf("recorded ops = %v, want [create]", rec.ops)
	}
}

func TestUpdate_CrossOwner_NotFound(t *testing.T) {
	repo := &mockNoteRepo{
		updateFn: func(context.Context, model.Principal, string, model.NoteInput) (*model.Note, error) {
			return nil, repository.ErrNotFound
		},
	}
	rec := &mockRecorder{}
	svc := NewService(repo, rec)

	_, err := svc.Update(context.Background(), userA, "note-of-b", model.NoteInput{Title: "x"})

	if appErrorCode(err) != model.ErrCodeNoteNotFound {
		t.Errorf("err = %v, want NOTE_NOT_FOUND", err)
	}
	if len(rec.ops) != 0 {
		t.Errorf("recorded ops = %v, want none", rec.ops)
	}
}

func TestUpdate_StoreError_IsWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	repo := &mockNoteRepo{
		updateFn: func(context.Context, model.Principal, string, model.NoteInput) (*model.Note, error) {
			return nil, cause
		},
	}

	_, err := NewService(repo, nil).Update(context.Background(), userA, "n1", model.NoteInput{Title: "x"})

	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want wrapped %v", err, cause)
	}
	if appErrorCode(err) != "" {
		t.Errorf("store error should not be an AppError: %v", err)
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		deleteFn func(context.Context, model.Principal, string) error
		wantCode string
		wantErr  bool
	}{
		{name: "削除成功"},
		{
			name:     "該当なし",
			deleteFn: func(context.Context, model.Principal, string) error { return repository.ErrNotFound },
			wantCode: model.ErrCodeNoteNotFound,
			wantErr:  true,
		},
		{
			name:     "ストア障害",
			deleteFn: func(context.Context, model.Principal, string) error { return errors.New("boom") },
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&mockNoteRepo{deleteFn: tt.deleteFn}, nil)

			err := svc.Delete(context.Background(), userA, "n1")

			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if appErrorCode(err) != tt.wantCode {
				t.Errorf("code = %q, want %q", appErrorCode(err), tt.wantCode)
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(&mockNoteRepo{}, nil)

	_, err := svc.Get(context.Background(), userA, "missing")

	if appErrorCode(err) != model.ErrCodeNoteNotFound {
		t.Errorf("err = %v, want NOTE_NOT_FOUND", err)
	}
}

func TestList_PassesPrincipal(t *testing.T) {
	var got model.Principal
	repo := &mockNoteRepo{
		listFn: func(_ context.Context, p model.Principal) ([]*model.Note, error) {
			got = p
			return []*model.Note{{ID: "n1", OwnerID: p.UserID}}, nil
		},
	}

	notes, err := NewService(repo, nil).List(context.Background(), userA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != userA {
		t.Errorf("principal = %+v, want %+v", got, userA)
	}
	if len(notes) != 1 {
		t.Errorf("len(notes) = %d, want 1", len(notes))
	}
}
