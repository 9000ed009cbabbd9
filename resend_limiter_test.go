package shelfauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestResendLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	limiter := newResendLimiter(newTestRedis(t), ResendLimitConfig{
		Enabled:         true,
		MaxPerChallenge: 2,
		Window:          time.Minute,
		KeyPrefix:       "sa",
	})

	for i := 0; i < 2; i++ {
		if err := limiter.Check(ctx, "ver-1", ""); err != nil {
			t.Fatalf("check %d failed: %v", i+1, err)
		}
	}
	if err := limiter.Check(ctx, "ver-1", ""); !errors.Is(err, errResendRateLimited) {
		t.Fatalf("err = %v, want errResendRateLimited", err)
	}

	// A different challenge has its own window.
	if err := limiter.Check(ctx, "ver-2", ""); err != nil {
		t.Fatalf("unrelated challenge throttled: %v", err)
	}
}

func TestResendLimiterPerIP(t *testing.T) {
	ctx := context.Background()
	limiter := newResendLimiter(newTestRedis(t), ResendLimitConfig{
		Enabled:         true,
		MaxPerChallenge: 100,
		MaxPerIP:        1,
		Window:          time.Minute,
		KeyPrefix:       "sa",
	})

	if err := limiter.Check(ctx, "ver-1", "10.0.0.9"); err != nil {
		t.Fatalf("first check failed: %v", err)
	}
	err := limiter.Check(ctx, "ver-2", "10.0.0.9")
	if !errors.Is(err, errResendRateLimited) {
		t.Fatalf("err = %v, want errResendRateLimited across challenges", err)
	}

	// An empty client IP skips the IP window entirely.
	if err := limiter.Check(ctx, "ver-3", ""); err != nil {
		t.Fatalf("check without IP failed: %v", err)
	}
}

func TestResendLimiterUnavailableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	limiter := newResendLimiter(client, ResendLimitConfig{
		Enabled:         true,
		MaxPerChallenge: 5,
		Window:          time.Minute,
		KeyPrefix:       "sa",
	})

	err := limiter.Check(context.Background(), "ver-1", "")
	if !errors.Is(err, errResendLimiterUnavailable) {
		t.Fatalf("err = %v, want errResendLimiterUnavailable", err)
	}
}

func TestResendThrottledThroughEngine(t *testing.T) {
	ctx := WithClientIP(context.Background(), "203.0.113.7")
	f := newTestFixture()

	cfg := newTestConfig()
	cfg.ResendLimit.Enabled = true
	cfg.ResendLimit.MaxPerChallenge = 1
	cfg.ResendLimit.Window = time.Minute

	engine, err := New().
		WithConfig(cfg).
		WithStores(f.accounts, f.registrations, f.verifications).
		WithUnitOfWork(f.uow).
		WithRedis(newTestRedis(t)).
		WithOTPSender(f.sender).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	token, _ := submitForTest(t, engine, f)

	if _, err := engine.ResendOTP(ctx, token); err != nil {
		t.Fatalf("first resend failed: %v", err)
	}
	_, err = engine.ResendOTP(ctx, token)
	if !errors.Is(err, ErrResendRateLimited) {
		t.Fatalf("err = %v, want ErrResendRateLimited", err)
	}
	if KindOf(err) != KindNotAcceptable {
		t.Fatalf("kind = %v, want KindNotAcceptable", KindOf(err))
	}
}

func TestBuildRequiresRedisWhenLimiterEnabled(t *testing.T) {
	f := newTestFixture()

	cfg := newTestConfig()
	cfg.ResendLimit.Enabled = true

	_, err := New().
		WithConfig(cfg).
		WithStores(f.accounts, f.registrations, f.verifications).
		WithUnitOfWork(f.uow).
		WithOTPSender(f.sender).
		Build()
	if err == nil {
		t.Fatal("Build must fail without a redis client")
	}
}
