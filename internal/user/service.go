// Package user はプロフィール（表示名・パスワード）更新のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/supabase"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
)

// プロフィール画面に表示するメッセージ
const (
	MsgNameTooShort      = "Name too short"
	MsgNameUpdated       = "Name updated"
	MsgPasswordTooShort  = "Password too short"
	MsgPasswordsMismatch = "Passwords do not match"
	MsgPasswordUpdated   = "Password updated"
	MsgUnexpected        = "Unexpected error"
)

// ProfileGateway はユーザー属性の更新に必要なIdPの呼び出し。
type ProfileGateway interface {
	UpdateUser(ctx context.Context, accessToken string, update supabase.UserUpdate) error
}

// PasswordChange はパスワード変更フォームの入力。
type PasswordChange struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// Service はプロフィール更新のサービス層。
// 更新は常にリクエスト元ユーザーのアクセストークンで行う。
type Service struct {
	gateway ProfileGateway
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(gateway ProfileGateway) *Service {
	return &Service{gateway: gateway}
}

// UpdateName は表示名を更新し、成功メッセージを返す。
// display_name と username の両方を同じ値で更新する。
func (s *Service) UpdateName(ctx context.Context, p model.Principal, displayName string) (string, error) {
	name := strings.TrimSpace(displayName)
	if utf8.RuneCountInString(name) < minNameLength {
		return "", model.NewValidationError(MsgNameTooShort)
	}

	err := s.gateway.UpdateUser(ctx, p.AccessToken, supabase.UserUpdate{
		Data: map[string]any{
			"display_name": name,
			"username":     name,
		},
	})
	if err != nil {
		return "", s.mapGatewayError("display name", p, err)
	}

	slog.Info("display name updated", slog.String("user_id", p.UserID))
	return MsgNameUpdated, nil
}

// ChangePassword はパスワードを更新し、成功メッセージを返す。
// 現在のパスワードはIdPが検証しないため使用しない。
func (s *Service) ChangePassword(ctx context.Context, p model.Principal, in PasswordChange) (string, error) {
	if utf8.RuneCountInString(in.NewPassword) < minPasswordLength {
		return "", model.NewValidationError(MsgPasswordTooShort)
	}
	if in.NewPassword != in.ConfirmPassword {
		return "", model.NewValidationError(MsgPasswordsMismatch)
	}

	if err := s.gateway.UpdateUser(ctx, p.AccessToken, supabase.UserUpdate{Password: in.NewPassword}); err != nil {
		return "", s.mapGatewayError("password", p, err)
	}

	slog.Info("password updated", slog.String("user_id", p.UserID))
	return MsgPasswordUpdated, nil
}

// mapGatewayError はIdPが拒否した場合はそのメッセージを、それ以外は汎用メッセージを持つエラーに変換する。
func (s *Service) mapGatewayError(field string, p model.Principal, err error) error {
	if supabase.IsRejected(err) {
		slog.Warn("profile update rejected",
			slog.String("field", field),
			slog.String("user_id", p.UserID),
			slog.String("error", err.Error()),
		)
		return model.NewValidationError(supabase.MessageOf(err, MsgUnexpected))
	}

	slog.Error("profile update failed",
		slog.String("field", field),
		slog.String("user_id", p.UserID),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("failed to update %s: %w", field, err)
}

// DisplayMessage はエラーをプロフィール画面に表示するメッセージに変換する。
func DisplayMessage(err error) string {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return MsgUnexpected
}
