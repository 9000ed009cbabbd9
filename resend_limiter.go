package shelfauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	errResendRateLimited        = errors.New("otp resend rate limited")
	errResendLimiterUnavailable = errors.New("otp resend limiter unavailable")
)

// resendLimiter throttles OTP resends with Redis fixed windows, keyed by
// challenge and optionally by client IP. The on-document resend counter
// stays authoritative for reporting; this limiter only gates the flow.
type resendLimiter struct {
	redis  *redis.Client
	config ResendLimitConfig
}

func newResendLimiter(redisClient *redis.Client, cfg ResendLimitConfig) *resendLimiter {
	return &resendLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *resendLimiter) Check(ctx context.Context, verificationID, ip string) error {
	if err := l.enforceFixedWindow(ctx, resendChallengeKey(l.config.KeyPrefix, verificationID), l.config.MaxPerChallenge); err != nil {
		return err
	}
	if l.config.MaxPerIP > 0 && ip != "" {
		if err := l.enforceFixedWindow(ctx, resendIPKey(l.config.KeyPrefix, ip), l.config.MaxPerIP); err != nil {
			return err
		}
	}
	return nil
}

func (l *resendLimiter) enforceFixedWindow(ctx context.Context, key string, max int) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errResendLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", errResendLimiterUnavailable, err)
		}
	}

	if count > int64(max) {
		return errResendRateLimited
	}

	return nil
}

func resendChallengeKey(prefix, verificationID string) string {
	return prefix + ":orc:" + verificationID
}

func resendIPKey(prefix, ip string) string {
	return prefix + ":orip:" + ip
}
