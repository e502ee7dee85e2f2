package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/webnote/internal/model"
)

const noteColumns = `id, owner_id, title, content, created_at, updated_at`

// PostgresNoteRepo はPostgreSQLに直接接続するノートリポジトリ。
type PostgresNoteRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db, now: time.Now}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*model.Note, error) {
	n := &model.Note{}
	if err := s.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return n, nil
}

// ListByOwner は所有者のノートを作成日時の降順で返す。
func (r *PostgresNoteRepo) ListByOwner(ctx context.Context, p model.Principal) ([]*model.Note, error) {
	if _, err := uuid.Parse(p.UserID); err != nil {
		return []*model.Note{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE owner_id = $1 ORDER BY created_at DESC`,
		p.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []*model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// FindByIDAndOwner は所有者のノートを1件取得する。
// UUIDとして解釈できないIDはErrNotFoundとして扱う。
func (r *PostgresNoteRepo) FindByIDAndOwner(ctx context.Context, p model.Principal, id string) (*model.Note, error) {
	if !validIDs(id, p.UserID) {
		return nil, ErrNotFound
	}

	n, err := scanNote(r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1 AND owner_id = $2`,
		id, p.UserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return n, nil
}

// Create は所有者をp.UserIDとしてノートを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, p model.Principal, in model.NoteInput) (*model.Note, error) {
	if _, err := uuid.Parse(p.UserID); err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", p.UserID, err)
	}

	now := r.now()
	note := &model.Note{
		ID:        uuid.New().String(),
		OwnerID:   p.UserID,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (id, owner_id, title, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		note.ID, note.OwnerID, note.Title, note.Content, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert note: %w", err)
	}
	return note, nil
}

// UpdateByIDAndOwner はタイトルと本文を更新する。
func (r *PostgresNoteRepo) UpdateByIDAndOwner(ctx context.Context, p model.Principal, id string, in model.NoteInput) (*model.Note, error) {
	if !validIDs(id, p.UserID) {
		return nil, ErrNotFound
	}

	n, err := scanNote(r.db.QueryRowContext(ctx,
		`UPDATE notes SET title = $1, content = $2, updated_at = $3
		 WHERE id = $4 AND owner_id = $5
		 RETURNING `+noteColumns,
		in.Title, in.Content, r.now(), id, p.UserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return n, nil
}

// DeleteByIDAndOwner はノートを削除する。
func (r *PostgresNoteRepo) DeleteByIDAndOwner(ctx context.Context, p model.Principal, id string) error {
	if !validIDs(id, p.UserID) {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1 AND owner_id = $2`,
		id, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
