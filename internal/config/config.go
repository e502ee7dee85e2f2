// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ノートの保存先
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// EnvProduction は本番環境を表すAPP_ENVの値。
const EnvProduction = "production"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// App
	AppEnv   string
	LogLevel string

	// Supabase
	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string
	GatewayTimeout    time.Duration

	// Notes
	NotesBackend string
	NotesTable   string
	DatabaseURL  string

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int
	RedisURL         string

	// Quotes
	QuotesAPIURL  string
	ZenQuotesKey  string
	QuotesTimeout time.Duration

	// Server
	ServerPort     string
	BaseURL        string
	TrustedProxies []netip.Prefix

	// Cookie
	CookieSecure bool
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// LoadDotEnv は本番環境以外で.envファイルを環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルがなくてもエラーにしない。
func LoadDotEnv(filenames ...string) {
	if os.Getenv("APP_ENV") == EnvProduction {
		return
	}
	if err := godotenv.Load(filenames...); err != nil {
		slog.Debug("no .env file loaded", slog.String("error", err.Error()))
	}
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.NotesBackend = strings.ToLower(getEnvString("NOTES_BACKEND", BackendREST))

	// Required fields
	var missing []string

	cfg.SupabaseURL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}

	cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
	if cfg.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.NotesBackend == BackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.NotesBackend != BackendREST && cfg.NotesBackend != BackendPostgres {
		return nil, fmt.Errorf("NOTES_BACKEND must be %q or %q, got %q", BackendREST, BackendPostgres, cfg.NotesBackend)
	}

	trusted, err := parseTrustedProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return nil, err
	}
	cfg.TrustedProxies = trusted

	// Optional fields with defaults
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.SupabaseJWTSecret = os.Getenv("SUPABASE_JWT_SECRET")
	cfg.GatewayTimeout = getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second)
	cfg.NotesTable = getEnvString("NOTES_TABLE", "notes")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.QuotesAPIURL = getEnvString("QUOTES_API_URL", "https://zenquotes.io/api")
	cfg.ZenQuotesKey = getEnvString("ZENQUOTES_KEY", "")
	cfg.QuotesTimeout = getEnvDuration("QUOTES_TIMEOUT", 6*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = cfg.IsProduction()

	return cfg, nil
}

// parseTrustedProxies はカンマ区切りのIPアドレスまたはCIDRを解析する。
func parseTrustedProxies(s string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid entry %q: %w", part, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid entry %q: %w", part, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
