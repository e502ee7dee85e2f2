// Package repository はノートの永続化インターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/webnote/internal/model"
)

// ErrNotFound は所有者スコープの条件に一致する行が存在しないことを表す。
// 他ユーザーのノートを指定した場合も同じエラーになる。
var ErrNotFound = errors.New("note not found")

// NoteRepository はノートデータの永続化インターフェース。
// すべての操作は owner_id = p.UserID で絞り込む。
type NoteRepository interface {
	// ListByOwner は所有者のノートを作成日時の降順で返す。
	ListByOwner(ctx context.Context, p model.Principal) ([]*model.Note, error)

	// FindByIDAndOwner は所有者のノートを1件取得する。見つからない場合はErrNotFoundを返す。
	FindByIDAndOwner(ctx context.Context, p model.Principal, id string) (*model.Note, error)

	// Create は所有者をp.UserIDとしてノートを作成する。
	Create(ctx context.Context, p model.Principal, in model.NoteInput) (*model.Note, error)

	// UpdateByIDAndOwner はタイトルと本文を更新する。
	// 更新対象が0行の場合はErrNotFoundを返す。
	UpdateByIDAndOwner(ctx context.Context, p model.Principal, id string, in model.NoteInput) (*model.Note, error)

	// DeleteByIDAndOwner はノートを削除する。
	// 削除対象が0行の場合はErrNotFoundを返す。
	DeleteByIDAndOwner(ctx context.Context, p model.Principal, id string) error
}
