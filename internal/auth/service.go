package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/supabase"
)

const (
	// MsgAllFieldsRequired は登録フォームの必須項目が欠けている場合のメッセージ。
	MsgAllFieldsRequired = "All fields are required."
	// MsgInvalidCredentials はサインイン失敗時の汎用メッセージ。
	MsgInvalidCredentials = "Invalid email or password."
	// MsgRegistrationFailed はIdPに到達できず登録できなかった場合のメッセージ。
	MsgRegistrationFailed = "Registration is temporarily unavailable. Please try again."
)

// AccountGateway はアカウント操作に必要なIdPの呼び出し。
type AccountGateway interface {
	SignUp(ctx context.Context, params supabase.SignUpParams) (*model.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// RegisterInput は登録フォームの入力。
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Service は登録・サインイン・サインアウトのビジネスロジックを提供する。
type Service struct {
	gateway AccountGateway
}

// NewService はServiceを生成する。
func NewService(gateway AccountGateway) *Service {
	return &Service{gateway: gateway}
}

// Register はユーザーを登録する。
// 必須項目が欠けている場合はIdPを呼び出さずに検証エラーを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, model.NewValidationError(MsgAllFieldsRequired)
	}

	user, err := s.gateway.SignUp(ctx, supabase.SignUpParams{
		Email:    email,
		Password: in.Password,
		Username: username,
	})
	if err != nil {
		if supabase.IsRejected(err) {
			slog.Warn("registration rejected", slog.String("error", err.Error()))
			return nil, model.NewValidationError(supabase.MessageOf(err, MsgAllFieldsRequired))
		}
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Login はパスワード認証でセッションを発行する。
// 入力不足・資格情報の拒否・通信失敗のいずれも*model.AppErrorとして返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewAuthError(MsgInvalidCredentials)
	}

	session, err := s.gateway.SignInWithPassword(ctx, email, password)
	if err != nil {
		if supabase.IsRejected(err) {
			slog.Info("login rejected", slog.String("error", err.Error()))
			return nil, model.NewAuthError(supabase.MessageOf(err, MsgInvalidCredentials))
		}
		slog.Error("login failed", slog.String("error", err.Error()))
		return nil, model.NewAuthError(MsgInvalidCredentials)
	}
	if session == nil || !session.HasAccessToken() {
		return nil, model.NewAuthError(MsgInvalidCredentials)
	}

	return session, nil
}

// Logout はアクセストークンのセッションをIdP側で失効させる。
// 失敗しても呼び出し元はCookieを削除するため、エラーは記録用に返すのみ。
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := s.gateway.SignOut(ctx, accessToken); err != nil {
		slog.Warn("sign out failed", slog.String("error", err.Error()))
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}
