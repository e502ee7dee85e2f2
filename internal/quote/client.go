// Package quote はZenQuotes APIからランダムな名言を取得するクライアントを提供する。
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultEndpoint はZenQuotes APIのベースURL。
	DefaultEndpoint = "https://zenquotes.io/api"
	// DefaultTimeout は1回の呼び出しのタイムアウト。
	DefaultTimeout = 6 * time.Second

	userAgent       = "webnote/1.0"
	maxResponseSize = 64 << 10
)

// Quote は名言1件を表す。
// MarkupはAPIが返す整形済みHTMLで、サニタイズ前の値をそのまま保持する。
type Quote struct {
	Text   string
	Author string
	Markup string
}

// entry はZenQuotesのレスポンス要素（q: 本文, a: 著者, h: 整形済みHTML）。
type entry struct {
	Q string `json:"q"`
	A string `json:"a"`
	H string `json:"h"`
}

// Client はZenQuotes APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	key        string // 空の場合は無料枠（帰属表示が必要）
	now        func() time.Time
}

// NewClient はClientの新しいインスタンスを生成する。
// endpointが空の場合はDefaultEndpointを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, key string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimRight(endpoint, "/"),
		key:        key,
		now:        time.Now,
	}
}

// RequiresAttribution はAPIキーなしで利用しており、帰属表示が必要かどうかを返す。
func (c *Client) RequiresAttribution() bool {
	return c.key == ""
}

// Random はランダムな名言を1件取得する。
// 応答が空配列の場合はnilを返す。
func (c *Client) Random(ctx context.Context) (*Quote, error) {
	path := "/random"
	if c.key != "" {
		path += "/" + url.PathEscape(c.key)
	}

	reqURL, err := url.Parse(c.endpoint + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote endpoint: %w", err)
	}
	// キャッシュ回避
	q := reqURL.Query()
	q.Set("cb", strconv.FormatInt(c.now().UnixMilli(), 10))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("quote API request failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("quote API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("quote API returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", truncate(string(body), 200)),
		)
		return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var entries []entry
	if err := json.Unmarshal(body, &entries); err != nil {
		c.logger.Error("failed to parse quote response", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	if len(entries) == 0 || entries[0].Q == "" {
		return nil, nil
	}
	return &Quote{Text: entries[0].Q, Author: entries[0].A, Markup: entries[0].H}, nil
}

// truncate はsを先頭からn文字（rune単位）に切り詰める。
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
