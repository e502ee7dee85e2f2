package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/webnote/internal/model"
)

func TestRecoveryMiddleware_PanicRendersErrorPage(t *testing.T) {
	var gotCode string
	writeError := func(w http.ResponseWriter, r *http.Request, status int, appErr *model.AppError) {
		gotCode = appErr.Code
		w.WriteHeader(status)
	}

	handler := NewRecoveryMiddleware(writeError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notes/list", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if gotCode != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", gotCode, model.ErrCodeInternal)
	}
}

func TestRecoveryMiddleware_NoPanic_PassesThrough(t *testing.T) {
	handler := NewRecoveryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}
