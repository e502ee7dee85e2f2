package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	timeout := 6 * time.Second
	client := NewSafeClient(timeout)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// TestNewSafeClientBlocksLoopback はループバックへのリクエストがブロックされることをテストする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSafeClient(5 * time.Second)

	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"公開API", "https://zenquotes.io/api", false},
		{"http公開ホスト", "http://quotes.example.org/random", false},
		{"空文字", "", true},
		{"スキームなし", "not-a-url", true},
		{"ftpスキーム", "ftp://example.com/quotes", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"プライベートIP", "http://10.0.0.1/api", true},
		{"プライベートIP 192.168", "http://192.168.1.100/api", true},
		{"ループバック", "http://127.0.0.1/api", true},
		{"localhost", "http://localhost:8080/api", true},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/", true},
		{"GCPメタデータホスト", "http://metadata.google.internal/computeMetadata/v1/", true},
		{"IPv6ループバック", "http://[::1]/api", true},
		{"ゼロアドレス", "http://0.0.0.0/api", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
