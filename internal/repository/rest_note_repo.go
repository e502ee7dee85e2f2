package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/supabase"
)

// DefaultNotesTable はノートを格納するテーブル名のデフォルト値。
const DefaultNotesTable = "notes"

// invalidTextRepresentation は型変換に失敗した場合のPostgreSQLエラーコード（例: 不正なUUID）。
const invalidTextRepresentation = "22P02"

// TableClient はPostgRESTのテーブル操作。supabase.RESTClientが実装する。
type TableClient interface {
	Select(ctx context.Context, accessToken, table string, q supabase.Query, out any) error
	Insert(ctx context.Context, accessToken, table string, row any, out any) error
	Update(ctx context.Context, accessToken, table string, filters []supabase.Filter, patch any, out any) error
	Delete(ctx context.Context, accessToken, table string, filters []supabase.Filter, out any) error
}

// rowID はbigintとUUIDのどちらの主キーも文字列として受け取る。
type rowID string

// UnmarshalJSON は数値・文字列のどちらのIDも受け付ける。
func (id *rowID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = rowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("unsupported id %s: %w", b, err)
	}
	*id = rowID(n.String())
	return nil
}

type noteRow struct {
	ID        rowID     `json:"id"`
	OwnerID   rowID     `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r noteRow) toModel() *model.Note {
	return &model.Note{
		ID:        string(r.ID),
		OwnerID:   string(r.OwnerID),
		Title:     r.Title,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// RESTNoteRepo はSupabaseのData API経由のノートリポジトリ。
// 明示的なowner_idフィルタに加え、アクセストークンを転送して行レベルセキュリティも適用させる。
type RESTNoteRepo struct {
	client TableClient
	table  string
	now    func() time.Time
}

// NewRESTNoteRepo はRESTNoteRepoを生成する。tableが空の場合はDefaultNotesTableを使用する。
func NewRESTNoteRepo(client TableClient, table string) *RESTNoteRepo {
	if table == "" {
		table = DefaultNotesTable
	}
	return &RESTNoteRepo{client: client, table: table, now: time.Now}
}

func ownerScope(p model.Principal, id string) []supabase.Filter {
	return []supabase.Filter{supabase.Eq("id", id), supabase.Eq("owner_id", p.UserID)}
}

// ListByOwner は所有者のノートを作成日時の降順で返す。
func (r *RESTNoteRepo) ListByOwner(ctx context.Context, p model.Principal) ([]*model.Note, error) {
	var rows []noteRow
	err := r.client.Select(ctx, p.AccessToken, r.table, supabase.Query{
		Filters: []supabase.Filter{supabase.Eq("owner_id", p.UserID)},
		OrderBy: "created_at",
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return toNotes(rows, p), nil
}

// FindByIDAndOwner は所有者のノートを1件取得する。
func (r *RESTNoteRepo) FindByIDAndOwner(ctx context.Context, p model.Principal, id string) (*model.Note, error) {
	var rows []noteRow
	err := r.client.Select(ctx, p.AccessToken, r.table, supabase.Query{Filters: ownerScope(p, id)}, &rows)
	if err != nil {
		return nil, mapRESTError("find", err)
	}
	return firstOwned(rows, p)
}

// Create は所有者をp.UserIDとしてノートを作成する。
func (r *RESTNoteRepo) Create(ctx context.Context, p model.Principal, in model.NoteInput) (*model.Note, error) {
	row := map[string]string{
		"owner_id": p.UserID,
		"title":    in.Title,
		"content":  in.Content,
	}

	var rows []noteRow
	if err := r.client.Insert(ctx, p.AccessToken, r.table, row, &rows); err != nil {
		return nil, fmt.Errorf("failed to insert note: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to insert note: no row returned")
	}
	return rows[0].toModel(), nil
}

// UpdateByIDAndOwner はタイトルと本文を更新する。
func (r *RESTNoteRepo) UpdateByIDAndOwner(ctx context.Context, p model.Principal, id string, in model.NoteInput) (*model.Note, error) {
	patch := map[string]any{
		"title":      in.Title,
		"content":    in.Content,
		"updated_at": r.now().UTC(),
	}

	var rows []noteRow
	if err := r.client.Update(ctx, p.AccessToken, r.table, ownerScope(p, id), patch, &rows); err != nil {
		return nil, mapRESTError("update", err)
	}
	return firstOwned(rows, p)
}

// DeleteByIDAndOwner はノートを削除する。
func (r *RESTNoteRepo) DeleteByIDAndOwner(ctx context.Context, p model.Principal, id string) error {
	var rows []noteRow
	if err := r.client.Delete(ctx, p.AccessToken, r.table, ownerScope(p, id), &rows); err != nil {
		return mapRESTError("delete", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// toNotes は所有者が一致する行だけをモデルに変換する。
func toNotes(rows []noteRow, p model.Principal) []*model.Note {
	notes := make([]*model.Note, 0, len(rows))
	for _, row := range rows {
		if string(row.OwnerID) != p.UserID {
			continue
		}
		notes = append(notes, row.toModel())
	}
	return notes
}

func firstOwned(rows []noteRow, p model.Principal) (*model.Note, error) {
	notes := toNotes(rows, p)
	if len(notes) == 0 {
		return nil, ErrNotFound
	}
	return notes[0], nil
}

// mapRESTError は不正なID形式をErrNotFoundに変換する。
func mapRESTError(op string, err error) error {
	var se *supabase.Error
	if errors.As(err, &se) && se.Code == invalidTextRepresentation {
		return ErrNotFound
	}
	return fmt.Errorf("failed to %s note: %w", op, err)
}
