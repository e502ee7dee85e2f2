package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/webnote/internal/model"
)

// Limiter はキーごとにリクエストを許可するかどうかを判定する。
// 拒否した場合は再試行までの推定時間を返す。
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimitRecorder はレート制限による拒否を記録する。metrics.Collectorが実装する。
type RateLimitRecorder interface {
	RecordRateLimited(limitType string)
}

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralPerMinute int           // 全般のリクエスト数上限（req/min）
	AuthPerMinute    int           // サインイン・登録の試行数上限（req/min）
	CleanupInterval  time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 全般 120 req/min、サインイン・登録 10 req/min
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralPerMinute: 120,
		AuthPerMinute:    10,
		CleanupInterval:  5 * time.Minute,
	}
}

// RateLimiter は全般のレート制限とサインイン試行のレート制限の2種類を提供する。
type RateLimiter struct {
	general    Limiter
	auth       Limiter
	clientIP   *ClientIPResolver
	recorder   RateLimitRecorder
	writeError ErrorWriter
}

// NewRateLimiter は新しいRateLimiterを生成する。
// clientIPがnilの場合はRemoteAddrをキーにする。recorderはnilでもよい。
func NewRateLimiter(general, auth Limiter, clientIP *ClientIPResolver, recorder RateLimitRecorder, writeError ErrorWriter) *RateLimiter {
	return &RateLimiter{
		general:    general,
		auth:       auth,
		clientIP:   clientIP,
		recorder:   recorder,
		writeError: writeError.orDefault(),
	}
}

// GeneralMiddleware は全般のレート制限ミドルウェアを返す。
// 認証済みの場合はユーザーID、未認証の場合はクライアントIPをキーにする。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, "general", func(r *http.Request) string {
		if userID, err := UserIDFromContext(r.Context()); err == nil {
			return "user:" + userID
		}
		return "ip:" + rl.clientIP.ClientIP(r)
	})
}

// AuthAttemptMiddleware はサインイン・登録のPOST専用のレート制限ミドルウェアを返す。
// 全般のレート制限とは独立に、クライアントIPをキーにして動作する。
func (rl *RateLimiter) AuthAttemptMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.auth, "auth", func(r *http.Request) string {
		return "ip:" + rl.clientIP.ClientIP(r)
	})
}

func (rl *RateLimiter) middleware(limiter Limiter, limitType string, keyOf func(*http.Request) string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)

			allowed, retryAfter, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// 制限ストアの障害ではリクエストを通す
				slog.Warn("rate limit check failed",
					slog.String("limit_type", limitType),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", limitType),
				)
				if rl.recorder != nil {
					rl.recorder.RecordRateLimited(limitType)
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
				rl.writeError(w, r, http.StatusTooManyRequests, model.NewRateLimitedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds はRetry-Afterヘッダーに設定する秒数を返す。最小1秒。
func retryAfterSeconds(d time.Duration) int {
	sec := int(math.Ceil(d.Seconds()))
	if sec < 1 {
		sec = 1
	}
	return sec
}

// keyLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// MemoryLimiter はプロセス内のトークンバケットでキーごとのレート制限を行う。
type MemoryLimiter struct {
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration

	mu       sync.RWMutex
	limiters map[string]*keyLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemoryLimiter は1分あたりperMinute回までを許可するMemoryLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewMemoryLimiter(perMinute int, cleanupInterval time.Duration) *MemoryLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	ml := &MemoryLimiter{
		rate:            rate.Limit(float64(perMinute) / 60.0),
		burst:           perMinute,
		cleanupInterval: cleanupInterval,
		limiters:        make(map[string]*keyLimiter),
		stopCh:          make(chan struct{}),
	}

	go ml.cleanupLoop()

	return ml
}

// Allow はLimiterを実装する。
func (ml *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	limiter := ml.getOrCreate(key)

	if limiter.Allow() {
		return true, 0, nil
	}

	// 1トークンが補充されるまでの秒数
	retryAfter := time.Duration(float64(time.Second) / float64(ml.rate))
	return false, retryAfter, nil
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (ml *MemoryLimiter) Stop() {
	ml.stopOnce.Do(func() { close(ml.stopCh) })
}

// Count は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (ml *MemoryLimiter) Count() int {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	return len(ml.limiters)
}

// getOrCreate はキーのリミッターを取得または作成する。
func (ml *MemoryLimiter) getOrCreate(key string) *rate.Limiter {
	ml.mu.RLock()
	kl, exists := ml.limiters[key]
	ml.mu.RUnlock()

	if exists {
		ml.mu.Lock()
		kl.lastAccess = time.Now()
		ml.mu.Unlock()
		return kl.limiter
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	// ダブルチェック
	if kl, exists := ml.limiters[key]; exists {
		kl.lastAccess = time.Now()
		return kl.limiter
	}

	limiter := rate.NewLimiter(ml.rate, ml.burst)
	ml.limiters[key] = &keyLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (ml *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(ml.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.cleanup()
		case <-ml.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がcleanupIntervalの2倍を超えたエントリを削除する。
func (ml *MemoryLimiter) cleanup() {
	ttl := ml.cleanupInterval * 2
	now := time.Now()

	ml.mu.Lock()
	for key, kl := range ml.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(ml.limiters, key)
		}
	}
	ml.mu.Unlock()
}
