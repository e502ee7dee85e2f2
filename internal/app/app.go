// Package app はアプリケーションの初期化・依存関係の組み立て・起動を行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/webnote/internal/auth"
	"github.com/hitoshi/webnote/internal/config"
	"github.com/hitoshi/webnote/internal/database"
	"github.com/hitoshi/webnote/internal/handler"
	"github.com/hitoshi/webnote/internal/logger"
	"github.com/hitoshi/webnote/internal/metrics"
	"github.com/hitoshi/webnote/internal/middleware"
	"github.com/hitoshi/webnote/internal/note"
	"github.com/hitoshi/webnote/internal/quote"
	"github.com/hitoshi/webnote/internal/repository"
	"github.com/hitoshi/webnote/internal/security"
	"github.com/hitoshi/webnote/internal/session"
	"github.com/hitoshi/webnote/internal/supabase"
	"github.com/hitoshi/webnote/internal/user"
	"github.com/hitoshi/webnote/internal/view"
)

// startupPingTimeout は起動時の依存先（DB・Redis）の疎通確認のタイムアウト。
const startupPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 設定読み込み前にもログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定のログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("notes_backend", cfg.NotesBackend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// components は起動時に組み立てた依存関係を保持する。
type components struct {
	handler http.Handler
	closers []func() error
}

// Close は組み立て時に確保したリソースを逆順に解放する。
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			slog.Warn("failed to release resource", slog.String("error", err.Error()))
		}
	}
}

// build は設定から全依存関係をワイヤリングし、HTTPハンドラーを組み立てる。
// 途中で失敗した場合は確保済みのリソースを解放してエラーを返す。
func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. Supabaseクライアント
	sbClient := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey,
		&http.Client{Timeout: cfg.GatewayTimeout}, log)
	sbClient.SetObserver(collector)
	authClient := supabase.NewAuthClient(sbClient)

	var identityGateway auth.IdentityGateway = authClient
	if cfg.SupabaseJWTSecret != "" {
		verifier, err := supabase.NewTokenVerifier(authClient, cfg.SupabaseJWTSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to create token verifier: %w", err)
		}
		identityGateway = verifier
		log.Info("access tokens are verified locally")
	}

	// 3. ノートの保存先
	var (
		noteRepo repository.NoteRepository
		health   handler.HealthChecker
	)
	switch cfg.NotesBackend {
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db.Close)

		if err := database.Ping(ctx, db, startupPingTimeout); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("database connection established")

		noteRepo = repository.NewPostgresNoteRepo(db)
		health = handler.HealthCheckFunc(func(ctx context.Context) error {
			return db.PingContext(ctx)
		})
	default:
		noteRepo = repository.NewRESTNoteRepo(supabase.NewRESTClient(sbClient), cfg.NotesTable)
	}

	// 4. レート制限
	general, authAttempts, err := newLimiters(ctx, cfg, c)
	if err != nil {
		return nil, err
	}

	// 5. 名言API
	if err := security.ValidateURL(cfg.QuotesAPIURL); err != nil {
		return nil, fmt.Errorf("invalid QUOTES_API_URL: %w", err)
	}
	quotes := quote.NewClient(security.NewSafeClient(cfg.QuotesTimeout), log, cfg.QuotesAPIURL, cfg.ZenQuotesKey)

	// 6. ビュー
	views, err := view.NewRenderer(security.NewQuoteSanitizer(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	// 7. ルーターの構築
	codec := session.NewCodec(cfg.CookieSecure)
	deps := &handler.RouterDeps{
		Logger:      log,
		Resolver:    auth.NewResolver(identityGateway, collector, log),
		Codec:       codec,
		CSRFConfig:  middleware.CSRFConfig{CookieSecure: cfg.CookieSecure},
		RateLimiter: middleware.NewRateLimiter(general, authAttempts, middleware.NewClientIPResolver(cfg.TrustedProxies), collector, views.Error),
		Metrics:     collector,
		Gatherer:    registry,
		Views:       views,

		AuthService: auth.NewService(authClient),
		UserService: user.NewService(authClient),
		NoteService: note.NewService(noteRepo, collector),

		Quotes:        quotes,
		HealthChecker: health,
	}
	c.handler = handler.NewRouter(deps)

	return c, nil
}

// newLimiters はREDIS_URLが設定されていればRedis、なければプロセス内メモリのリミッターを生成する。
func newLimiters(ctx context.Context, cfg *config.Config, c *components) (general, authAttempts middleware.Limiter, err error) {
	if cfg.RedisURL == "" {
		rlCfg := middleware.DefaultRateLimiterConfig()
		g := middleware.NewMemoryLimiter(cfg.RateLimitGeneral, rlCfg.CleanupInterval)
		a := middleware.NewMemoryLimiter(cfg.RateLimitAuth, rlCfg.CleanupInterval)
		c.closers = append(c.closers,
			func() error { g.Stop(); return nil },
			func() error { a.Stop(); return nil },
		)
		return g, a, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opt.DialTimeout = startupPingTimeout

	client := redis.NewClient(opt)
	c.closers = append(c.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("redis connection established")

	return middleware.NewRedisLimiter(client, "general", cfg.RateLimitGeneral, time.Minute),
		middleware.NewRedisLimiter(client, "auth", cfg.RateLimitAuth, time.Minute),
		nil
}

// runServe はWebサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	c, err := build(context.Background(), cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           c.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if version, dirty, err := database.Version(cfg.DatabaseURL); err == nil {
		slog.Info("database migrations completed successfully",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
