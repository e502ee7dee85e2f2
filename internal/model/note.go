// Package model はドメインモデルを定義する。
package model

import "time"

// Note はユーザーが所有するテキストノートを表す。
// 読み取り・更新・削除は常に OwnerID がリクエスト元ユーザーIDと一致する行に限定される。
type Note struct {
	ID        string
	Title     string
	Content   string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteInput はノート作成・更新時の入力値を表す。
type NoteInput struct {
	Title   string
	Content string
}
