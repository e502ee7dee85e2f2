package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter はRedisの固定ウィンドウカウンタでキーごとのレート制限を行う。
// 複数インスタンスで上限を共有する場合に使う。
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter はwindowあたりlimit回までを許可するRedisLimiterを生成する。
func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *RedisLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow はLimiterを実装する。
// キーにはウィンドウ番号を含めるため、有効期限の設定に失敗してもウィンドウが変われば別カウンタになる。
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	windowSeconds := int64(rl.window / time.Second)
	nowUnix := rl.now().Unix()
	bucket := nowUnix / windowSeconds
	redisKey := fmt.Sprintf("rl:%s:%s:%d", rl.prefix, key, bucket)

	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("レート制限カウンタの更新に失敗: %w", err)
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window+time.Second).Err(); err != nil {
			return false, 0, fmt.Errorf("レート制限カウンタの有効期限設定に失敗: %w", err)
		}
	}

	if count <= rl.limit {
		return true, 0, nil
	}

	// 次のウィンドウの開始まで待たせる
	retryAfter := time.Duration((bucket+1)*windowSeconds-nowUnix) * time.Second
	return false, retryAfter, nil
}
