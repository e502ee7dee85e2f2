// Package auth はCookieのトークンからの本人確認、トークンの更新、
// 登録・サインイン・サインアウトのユースケースを提供する。
package auth

import (
	"context"
	"log/slog"

	"github.com/hitoshi/webnote/internal/model"
	"github.com/hitoshi/webnote/internal/supabase"
)

// Outcome は1リクエストの本人確認の結果を表す。
type Outcome string

const (
	// OutcomeAnonymous はアクセストークンがない状態。
	OutcomeAnonymous Outcome = "anonymous"
	// OutcomeAuthenticated はアクセストークンでそのままユーザーを特定できた状態。
	OutcomeAuthenticated Outcome = "authenticated"
	// OutcomeRefreshed はトークンを更新した上でユーザーを特定できた状態。
	OutcomeRefreshed Outcome = "refreshed"
	// OutcomeSessionInvalid はトークンが拒否され、更新もできなかった状態。
	OutcomeSessionInvalid Outcome = "session_invalid"
	// OutcomeGatewayUnavailable はIdPへの通信失敗などで判定できなかった状態。
	OutcomeGatewayUnavailable Outcome = "gateway_unavailable"
)

// IdentityGateway は本人確認に必要なIdPの呼び出し。
// supabase.AuthClient と supabase.TokenVerifier が実装する。
type IdentityGateway interface {
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
	RefreshSession(ctx context.Context, current model.Session) (*model.Session, error)
}

// OutcomeRecorder は本人確認の結果を記録する。metrics.Collectorが実装する。
type OutcomeRecorder interface {
	RecordAuthResolution(outcome string)
}

// Resolution はResolveの結果。
type Resolution struct {
	Outcome Outcome
	User    *model.User   // 特定できた場合のみ非nil
	Session model.Session // 以後のリクエストで使う有効なトークンの組
	Rotated bool          // trueの場合、呼び出し元はSessionでCookieを書き換える
	Err     error         // SessionInvalid / GatewayUnavailable の原因
}

// Authenticated はユーザーを特定できたかどうかを返す。
func (r Resolution) Authenticated() bool {
	return r.User != nil
}

// Resolver はCookieのトークンの組からリクエスト元ユーザーを特定する。
// グローバルな本人確認と認証必須ルートの両方がこの1つの実装を使う。
type Resolver struct {
	gateway  IdentityGateway
	recorder OutcomeRecorder
	logger   *slog.Logger
}

// NewResolver はResolverを生成する。recorderはnilでもよい。
func NewResolver(gateway IdentityGateway, recorder OutcomeRecorder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{gateway: gateway, recorder: recorder, logger: logger}
}

// Resolve はトークンの組を検証し、必要なら1回だけ更新してユーザーを特定する。
// 失敗はすべて未認証として返し、エラーで中断することはない。
func (r *Resolver) Resolve(ctx context.Context, current model.Session) Resolution {
	res := r.resolve(ctx, current)
	r.report(res)
	return res
}

func (r *Resolver) resolve(ctx context.Context, current model.Session) Resolution {
	// 1. アクセストークンなし
	if !current.HasAccessToken() {
		return Resolution{Outcome: OutcomeAnonymous, Session: current}
	}

	// 2. アクセストークンで特定
	user, err := r.gateway.GetUser(ctx, current.AccessToken)
	if err == nil {
		return Resolution{Outcome: OutcomeAuthenticated, User: user, Session: current}
	}
	if supabase.IsTransient(err) {
		// 通信失敗では更新してもユーザーを特定できず、リフレッシュトークンを消費するだけになる
		return Resolution{Outcome: OutcomeGatewayUnavailable, Session: current, Err: err}
	}

	// 4. 拒否され、リフレッシュトークンもない
	if !current.HasRefreshToken() {
		return Resolution{Outcome: OutcomeSessionInvalid, Session: current, Err: err}
	}

	// 3. トークンを更新
	refreshed, err := r.gateway.RefreshSession(ctx, current)
	if err != nil {
		return Resolution{Outcome: failureOutcome(err), Session: current, Err: err}
	}
	if refreshed == nil || !refreshed.HasAccessToken() || !refreshed.HasRefreshToken() {
		return Resolution{Outcome: OutcomeSessionInvalid, Session: current, Err: supabase.ErrEmptySession}
	}

	res := Resolution{Session: *refreshed, Rotated: true}

	user, err = r.gateway.GetUser(ctx, refreshed.AccessToken)
	if err != nil {
		res.Outcome = failureOutcome(err)
		res.Err = err
		return res
	}

	res.Outcome = OutcomeRefreshed
	res.User = user
	return res
}

func failureOutcome(err error) Outcome {
	if supabase.IsRejected(err) {
		return OutcomeSessionInvalid
	}
	return OutcomeGatewayUnavailable
}

// report は結果に応じたレベルでログを出力し、記録先に通知する。
func (r *Resolver) report(res Resolution) {
	if r.recorder != nil {
		r.recorder.RecordAuthResolution(string(res.Outcome))
	}

	switch res.Outcome {
	case OutcomeAnonymous, OutcomeAuthenticated:
		return
	case OutcomeRefreshed:
		r.logger.Debug("session refreshed", slog.String("user_id", res.User.ID))
	case OutcomeSessionInvalid:
		r.logger.Info("session rejected",
			slog.Bool("rotated", res.Rotated),
			slog.String("error", errString(res.Err)),
		)
	case OutcomeGatewayUnavailable:
		r.logger.Warn("identity gateway unavailable",
			slog.Bool("rotated", res.Rotated),
			slog.String("error", errString(res.Err)),
		)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
