package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"jobportal/internal/config"
)

type loginVerdict int

const (
	loginAllowed loginVerdict = iota
	loginRateLimited
	loginLocked
)

// loginLimiter 按 IP+邮箱 做小时窗口限流，按邮箱累计失败次数并临时锁定。
// Redis 不可用时放行，登录本身仍由密码校验把关。
type loginLimiter struct {
	redis     redis.Cmdable
	perHour   int
	threshold int
	lockTTL   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func newLoginLimiter(client redis.Cmdable, cfg config.AuthConfig, logger *slog.Logger) *loginLimiter {
	return &loginLimiter{
		redis:     client,
		perHour:   cfg.LoginRateLimitPerHour,
		threshold: cfg.LoginLockThreshold,
		lockTTL:   cfg.LoginLockTTL,
		logger:    logger,
		now:       time.Now,
	}
}

func (l *loginLimiter) rateKey(ip, email string) string {
	return fmt.Sprintf("rate:login:%s:%s:%s", ip, email, l.now().UTC().Format("2006010215"))
}

func lockKey(email string) string    { return "lock:login:" + email }
func failureKey(email string) string { return "lock:login:fail:" + email }

// incr 原子地自增并设置过期；只在首次创建时设置，窗口不会被后续请求续期。
func (l *loginLimiter) incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// check 在校验密码之前调用。
func (l *loginLimiter) check(ctx context.Context, ip, email string) loginVerdict {
	if l.perHour > 0 {
		count, err := l.incr(ctx, l.rateKey(ip, email), time.Hour)
		if err != nil {
			l.logger.Warn("login rate counter unavailable", slog.Any("error", err))
		} else if count > int64(l.perHour) {
			return loginRateLimited
		}
	}
	if ttl, err := l.redis.TTL(ctx, lockKey(email)).Result(); err == nil && ttl > 0 {
		return loginLocked
	}
	return loginAllowed
}

// recordFailure 累计失败次数，达到阈值后锁定账号 lockTTL。
func (l *loginLimiter) recordFailure(ctx context.Context, email string) {
	if l.threshold <= 0 {
		return
	}
	count, err := l.incr(ctx, failureKey(email), l.lockTTL)
	if err != nil {
		l.logger.Warn("login failure counter unavailable", slog.Any("error", err))
		return
	}
	if count >= int64(l.threshold) {
		_ = l.redis.Set(ctx, lockKey(email), "1", l.lockTTL).Err()
	}
}

// reset 在登录成功后清零失败计数。
func (l *loginLimiter) reset(ctx context.Context, email string) {
	_ = l.redis.Del(ctx, failureKey(email)).Err()
}
