package supabase

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/hitoshi/webnote/internal/model"
)

// ErrEmptySession はIdPが成功ステータスでトークンを返さなかったことを表す。
var ErrEmptySession = errors.New("supabase: empty session in response")

// SignUpParams はユーザー登録の入力を表す。
type SignUpParams struct {
	Email    string
	Password string
	Username string
}

// UserUpdate はユーザー属性の更新内容を表す。空のフィールドは送信しない。
type UserUpdate struct {
	Password string
	Data     map[string]any
}

func (u UserUpdate) toRequest() types.UpdateUserRequest {
	req := types.UpdateUserRequest{Data: u.Data}
	if u.Password != "" {
		password := u.Password
		req.Password = &password
	}
	return req
}

func toUser(u types.User) *model.User {
	return model.NewUser(u.ID.String(), u.Email, u.UserMetadata)
}

func toSession(s types.Session) *model.Session {
	return &model.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
}

// AuthClient はGoTrue（/auth/v1）の呼び出しを提供する。
type AuthClient struct {
	client *Client
	gotrue gotrue.Client
}

// NewAuthClient はAuthClientを生成する。
func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{
		client: client,
		gotrue: gotrue.New("", client.apiKey).WithCustomGoTrueURL(client.baseURL + "/auth/v1"),
	}
}

// with は呼び出し専用のRoundTripperとアクセストークンを設定したGoTrueクライアントを返す。
func (a *AuthClient) with(rt http.RoundTripper, accessToken string) gotrue.Client {
	c := a.gotrue.WithClient(http.Client{Transport: rt})
	if accessToken != "" {
		c = c.WithToken(accessToken)
	}
	return c
}

// SignUp はメールアドレスとパスワードでユーザーを登録する。
// usernameはuser_metadataのusernameとdisplay_nameの両方に保存する。
func (a *AuthClient) SignUp(ctx context.Context, params SignUpParams) (*model.User, error) {
	var user *model.User
	err := a.client.run(ctx, "auth", "signup", func(rt *callTransport) error {
		// メール確認が有効な場合はユーザー、無効な場合はセッション（user付き）が返る
		resp, err := a.with(rt, "").Signup(types.SignupRequest{
			Email:    params.Email,
			Password: params.Password,
			Data: map[string]any{
				"username":     params.Username,
				"display_name": params.Username,
			},
		})
		if err != nil {
			return err
		}
		user = toUser(resp.User)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SignInWithPassword はパスワード認証でセッションを発行する。
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	var session *model.Session
	err := a.client.run(ctx, "auth", "token_password", func(rt *callTransport) error {
		resp, err := a.with(rt, "").SignInWithEmailPassword(email, password)
		if err != nil {
			return invalidRequest(err)
		}
		session = toSession(resp.Session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, ErrEmptySession
	}
	return session, nil
}

// GetUser はアクセストークンに対応するユーザーを取得する。
// トークンが拒否された場合はIsRejectedがtrueになるエラーを返す。
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	var user *model.User
	err := a.client.run(ctx, "auth", "get_user", func(rt *callTransport) error {
		resp, err := a.with(rt, accessToken).GetUser()
		if err != nil {
			return err
		}
		if resp.ID == uuid.Nil {
			return &Error{Status: http.StatusUnauthorized, Message: "user not found for token"}
		}
		user = toUser(resp.User)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RefreshSession はリフレッシュトークンを新しいトークンの組に交換する。
// 返されるセッションのトークンが空の場合もそのまま返し、判定は呼び出し元が行う。
func (a *AuthClient) RefreshSession(ctx context.Context, current model.Session) (*model.Session, error) {
	var session *model.Session
	err := a.client.run(ctx, "auth", "token_refresh", func(rt *callTransport) error {
		resp, err := a.with(rt, current.AccessToken).RefreshToken(current.RefreshToken)
		if err != nil {
			return invalidRequest(err)
		}
		session = toSession(resp.Session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SignOut はアクセストークンのセッションを失効させる。
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	return a.client.run(ctx, "auth", "logout", func(rt *callTransport) error {
		return a.with(rt, accessToken).Logout()
	})
}

// UpdateUser は呼び出し元ユーザーの属性を更新する。
// 対象ユーザーはアクセストークンで決まる。
func (a *AuthClient) UpdateUser(ctx context.Context, accessToken string, update UserUpdate) error {
	return a.client.run(ctx, "auth", "update_user", func(rt *callTransport) error {
		_, err := a.with(rt, accessToken).UpdateUser(update.toRequest())
		return err
	})
}

// invalidRequest はgotrue-goが送信前に拒否したトークン要求を*Errorに変換する。
func invalidRequest(err error) error {
	if errors.Is(err, types.ErrInvalidTokenRequest) {
		return &Error{Status: http.StatusBadRequest, Code: "invalid_request", Message: "email, password and refresh token must not be empty"}
	}
	return err
}
