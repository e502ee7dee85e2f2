package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/webnote/internal/model"
)

// accessClaims はSupabaseが発行するアクセストークンのクレーム。
type accessClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// TokenVerifier はプロジェクトのJWTシークレットでアクセストークンをローカル検証する。
// GetUser以外の呼び出しはAuthClientに委譲する。
// ローカル検証ではサインアウト済みトークンを検出できないため、有効期限までは受理される。
type TokenVerifier struct {
	*AuthClient
	secret []byte
}

// NewTokenVerifier はTokenVerifierを生成する。
func NewTokenVerifier(auth *AuthClient, secret string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret not provided")
	}
	return &TokenVerifier{AuthClient: auth, secret: []byte(secret)}, nil
}

// GetUser は署名・有効期限・subを検証し、クレームからユーザーを組み立てる。
// 検証に失敗したトークンは401の*Errorとして拒否する。
func (v *TokenVerifier) GetUser(_ context.Context, accessToken string) (*model.User, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, &Error{
			Status:  http.StatusUnauthorized,
			Code:    "bad_jwt",
			Message: fmt.Sprintf("invalid access token: %v", err),
		}
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, &Error{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "access token has no subject"}
	}

	return model.NewUser(claims.Subject, claims.Email, claims.UserMetadata), nil
}
