// Package supabase はSupabaseのAuth（GoTrue）APIとData（PostgREST）APIのクライアントを提供する。
// HTTPの送受信はgotrue-goとpostgrest-goが行い、このパッケージは呼び出しごとのタイムアウトとエラーの分類を担う。
package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout は外部呼び出し全体のデフォルトタイムアウト。
	DefaultTimeout = 10 * time.Second

	// maxErrorBodySize はエラーレスポンスとして保持するボディの最大サイズ。
	maxErrorBodySize = 64 << 10
)

// 呼び出し結果のラベル
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// CallObserver は外部呼び出しの結果と所要時間を受け取る。
// metrics.Collectorが実装する。
type CallObserver interface {
	ObserveGatewayCall(service, operation, result string, duration time.Duration)
}

// Client はSupabaseプロジェクトへのアクセスに共通する設定を保持する。
// AuthClientとRESTClientが共有する。
type Client struct {
	baseURL   string
	apiKey    string
	transport http.RoundTripper
	timeout   time.Duration
	logger    *slog.Logger
	observer  CallObserver
}

// NewClient はClientを生成する。
// httpClientのTransportとTimeoutを各呼び出しに引き継ぐ。nilの場合はDefaultTimeoutを使用する。
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	transport := http.DefaultTransport
	timeout := DefaultTimeout
	if httpClient != nil {
		if httpClient.Transport != nil {
			transport = httpClient.Transport
		}
		if httpClient.Timeout > 0 {
			timeout = httpClient.Timeout
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		transport: transport,
		timeout:   timeout,
		logger:    logger,
	}
}

// SetObserver は呼び出し結果の通知先を設定する。
func (c *Client) SetObserver(o CallObserver) {
	c.observer = o
}

// callTransport は1回の呼び出しに使うRoundTripper。
// リクエストにcontextを付与し、エラーステータスの場合はステータスとボディを保持する。
type callTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	status int
	body   []byte
}

// RoundTrip はhttp.RoundTripperを実装する。
func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, err
	}

	t.status = resp.StatusCode
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		resp.Body.Close()
		t.body = body
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, nil
}

// run はfnをタイムアウト付きで実行し、結果を分類して記録する。
// fnには今回の呼び出し専用のRoundTripperが渡される。
func (c *Client) run(ctx context.Context, service, operation string, fn func(rt *callTransport) error) (err error) {
	start := time.Now()
	defer func() {
		c.observe(service, operation, err, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rt := &callTransport{ctx: ctx, base: c.transport}
	if err := fn(rt); err != nil {
		var se *Error
		switch {
		case errors.As(err, &se):
			return se
		case rt.status >= 400:
			return parseError(rt.status, rt.body)
		default:
			return fmt.Errorf("supabase %s request failed: %w", operation, err)
		}
	}
	return nil
}

func (c *Client) observe(service, operation string, err error, d time.Duration) {
	result := ResultOK
	switch {
	case err == nil:
	case IsRejected(err):
		result = ResultRejected
	default:
		result = ResultError
	}

	if result == ResultError {
		c.logger.Warn("supabase call failed",
			slog.String("service", service),
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
	}

	if c.observer != nil {
		c.observer.ObserveGatewayCall(service, operation, result, d)
	}
}
