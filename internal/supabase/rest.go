package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/postgrest-go"
)

// Filter はPostgRESTの等価フィルタ（column=eq.value）を表す。
type Filter struct {
	Column string
	Value  string
}

// Eq はFilterを生成する。
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// Query はSelectの条件を表す。
type Query struct {
	Columns   string // 省略時は "*"
	Filters   []Filter
	OrderBy   string // 並べ替える列。空の場合は並べ替えない
	Ascending bool
}

// RESTClient はPostgREST（/rest/v1）のテーブル操作を提供する。
// アクセストークンを転送し、行レベルセキュリティを呼び出しユーザーとして適用させる。
type RESTClient struct {
	client *Client
}

// NewRESTClient はRESTClientを生成する。
func NewRESTClient(client *Client) *RESTClient {
	return &RESTClient{client: client}
}

// from は呼び出し専用のPostgRESTクライアントでtableのクエリを開始する。
// postgrest.Clientはヘッダーを内部に保持するため、呼び出しごとに生成する。
func (r *RESTClient) from(rt *callTransport, accessToken, table string) *postgrest.QueryBuilder {
	bearer := accessToken
	if bearer == "" {
		bearer = r.client.apiKey
	}
	pg := postgrest.NewClient(r.client.baseURL+"/rest/v1", "", map[string]string{
		"apikey":        r.client.apiKey,
		"Authorization": "Bearer " + bearer,
	})
	pg.Transport.Parent = rt
	return pg.From(table)
}

// Select は条件に一致する行を取得し、outにデコードする。
func (r *RESTClient) Select(ctx context.Context, accessToken, table string, q Query, out any) error {
	return r.client.run(ctx, "rest", "select", func(rt *callTransport) error {
		fb := withFilters(r.from(rt, accessToken, table).Select(q.Columns, "", false), q.Filters)
		if q.OrderBy != "" {
			fb = fb.Order(q.OrderBy, &postgrest.OrderOpts{Ascending: q.Ascending})
		}
		return executeInto(fb, out)
	})
}

// Insert は行を挿入し、挿入後の行をoutにデコードする。
func (r *RESTClient) Insert(ctx context.Context, accessToken, table string, row any, out any) error {
	return r.client.run(ctx, "rest", "insert", func(rt *callTransport) error {
		return executeInto(r.from(rt, accessToken, table).Insert([]any{row}, false, "", "representation", ""), out)
	})
}

// Update はフィルタに一致する行を更新し、更新後の行をoutにデコードする。
// 一致する行がない場合、outは空配列になる。
func (r *RESTClient) Update(ctx context.Context, accessToken, table string, filters []Filter, patch any, out any) error {
	return r.client.run(ctx, "rest", "update", func(rt *callTransport) error {
		fb := r.from(rt, accessToken, table).Update(patch, "representation", "")
		return executeInto(withFilters(fb, filters), out)
	})
}

// Delete はフィルタに一致する行を削除し、削除した行をoutにデコードする。
func (r *RESTClient) Delete(ctx context.Context, accessToken, table string, filters []Filter, out any) error {
	return r.client.run(ctx, "rest", "delete", func(rt *callTransport) error {
		fb := r.from(rt, accessToken, table).Delete("representation", "")
		return executeInto(withFilters(fb, filters), out)
	})
}

func withFilters(fb *postgrest.FilterBuilder, filters []Filter) *postgrest.FilterBuilder {
	for _, f := range filters {
		fb = fb.Eq(f.Column, f.Value)
	}
	return fb
}

// executeInto はクエリを実行し、レスポンスのJSONをoutにデコードする。
func executeInto(fb *postgrest.FilterBuilder, out any) error {
	body, _, err := fb.Execute()
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode PostgREST response: %w", err)
	}
	return nil
}
