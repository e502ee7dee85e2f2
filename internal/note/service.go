// Package note はノートの検証と所有者スコープのCRUDを提供する。
package note

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/repository"
)

const (
	// MaxTitleLength はタイトルの最大文字数。
	MaxTitleLength = 200
	// MaxContentLength は本文の最大文字数。
	MaxContentLength = 20000
)

// 検証エラーのメッセージ
const (
	MsgTitleRequired   = "Title is required."
	MsgTitleTooLong    = "Title must be at most 200 characters."
	MsgContentTooLong  = "Content must be at most 20000 characters."
	MsgNoteUnavailable = "Could not load your notes right now."
)

// MutationRecorder はノートの変更操作を記録する。metrics.Collectorが実装する。
type MutationRecorder interface {
	RecordNoteMutation(operation string)
}

// Service はノート管理のサービス層。
type Service struct {
	repo     repository.NoteRepository
	recorder MutationRecorder
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでもよい。
func NewService(repo repository.NoteRepository, recorder MutationRecorder) *Service {
	return &Service{repo: repo, recorder: recorder}
}

// Validate はタイトルと本文を検証し、前後の空白を除いたタイトルを返す。
func Validate(in model.NoteInput) (model.NoteInput, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return in, model.NewValidationError(MsgTitleRequired)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return in, model.NewValidationError(MsgTitleTooLong)
	}
	if utf8.RuneCountInString(in.Content) > MaxContentLength {
		return in, model.NewValidationError(MsgContentTooLong)
	}
	return model.NoteInput{Title: title, Content: in.Content}, nil
}

// List はリクエスト元ユーザーのノート一覧を返す。
func (s *Service) List(ctx context.Context, p model.Principal) ([]*model.Note, error) {
	notes, err := s.repo.ListByOwner(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("ノート一覧の取得に失敗しました: %w", err)
	}
	return notes, nil
}

// Get はリクエスト元ユーザーのノートを1件返す。
func (s *Service) Get(ctx context.Context, p model.Principal, id string) (*model.Note, error) {
	n, err := s.repo.FindByIDAndOwner(ctx, p, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewNoteNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("ノートの取得に失敗しました: %w", err)
	}
	return n, nil
}

// Create はノートを作成する。
func (s *Service) Create(ctx context.Context, p model.Principal, in model.NoteInput) (*model.Note, error) {
	valid, err := Validate(in)
	if err != nil {
		return nil, err
	}

	n, err := s.repo.Create(ctx, p, valid)
	if err != nil {
		return nil, fmt.Errorf("ノートの作成に失敗しました: %w", err)
	}

	s.record("create")
	slog.Info("note created", slog.String("user_id", p.UserID), slog.String("note_id", n.ID))
	return n, nil
}

// Update はノートを更新する。他ユーザーのノートや存在しないノートはNOTE_NOT_FOUNDになる。
func (s *Service) Update(ctx context.Context, p model.Principal, id string, in model.NoteInput) (*model.Note, error) {
	valid, err := Validate(in)
	if err != nil {
		return nil, err
	}

	n, err := s.repo.UpdateByIDAndOwner(ctx, p, id, valid)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("note update matched no rows", slog.String("user_id", p.UserID), slog.String("note_id", id))
		return nil, model.NewNoteNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("ノートの更新に失敗しました: %w", err)
	}

	s.record("update")
	return n, nil
}

// Delete はノートを削除する。他ユーザーのノートや存在しないノートはNOTE_NOT_FOUNDになる。
func (s *Service) Delete(ctx context.Context, p model.Principal, id string) error {
	err := s.repo.DeleteByIDAndOwner(ctx, p, id)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("note delete matched no rows", slog.String("user_id", p.UserID), slog.String("note_id", id))
		return model.NewNoteNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("ノートの削除に失敗しました: %w", err)
	}

	s.record("delete")
	return nil
}

func (s *Service) record(op string) {
	if s.recorder != nil {
		s.recorder.RecordNoteMutation(op)
	}
}
