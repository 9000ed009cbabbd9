package shelfauth

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/shahriar-hub/shelfauth/password"
	"github.com/shahriar-hub/shelfauth/token"
)

// Builder assembles an [Engine] from a Config plus the caller's store
// implementations. A Builder is single-use.
type Builder struct {
	config Config
	redis  *redis.Client

	accounts      AccountStore
	registrations RegistrationStore
	verifications VerificationStore
	uow           UnitOfWork

	auditSink AuditSink
	otpSender OTPSender

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration. Secret slices are cloned
// so the caller can zero its own copies after Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStores wires the three durable stores.
func (b *Builder) WithStores(accounts AccountStore, registrations RegistrationStore, verifications VerificationStore) *Builder {
	b.accounts = accounts
	b.registrations = registrations
	b.verifications = verifications
	return b
}

// WithUnitOfWork wires the transactional boundary used by registration
// submission and OTP verification.
func (b *Builder) WithUnitOfWork(uow UnitOfWork) *Builder {
	b.uow = uow
	return b
}

// WithRedis wires the Redis client backing the resend limiter. Required
// only when ResendLimit.Enabled is set.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the sink receiving audit events. Ignored unless
// Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithOTPSender sets the out-of-band OTP delivery hook. Without one, the
// engine still runs; codes are simply never delivered, which is the usual
// arrangement in tests.
func (b *Builder) WithOTPSender(sender OTPSender) *Builder {
	b.otpSender = sender
	return b
}

// WithMetricsEnabled toggles the in-process metrics counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, constructs the credential and token
// primitives, and returns the ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil || b.registrations == nil || b.verifications == nil {
		return nil, errors.New("account, registration, and verification stores are required")
	}
	if b.uow == nil {
		return nil, errors.New("unit of work is required")
	}
	if cfg.ResendLimit.Enabled && b.redis == nil {
		return nil, errors.New("resend limiter requires a redis client")
	}

	hasher, err := password.NewBcrypt(password.Config{Cost: cfg.Password.Cost})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		RegistrationSecret: cfg.Token.RegistrationSecret,
		AccessSecret:       cfg.Token.AccessSecret,
		RefreshSecret:      cfg.Token.RefreshSecret,
		RegistrationTTL:    cfg.Token.RegistrationTTL,
		AccessTTL:          cfg.Token.AccessTTL,
		RefreshTTL:         cfg.Token.RefreshTTL,
		Issuer:             cfg.Token.Issuer,
		Leeway:             cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	var limiter *resendLimiter
	if cfg.ResendLimit.Enabled {
		limiter = newResendLimiter(b.redis, cfg.ResendLimit)
	}

	e := &Engine{
		config:        cfg,
		accounts:      b.accounts,
		registrations: b.registrations,
		verifications: b.verifications,
		uow:           b.uow,
		resendLimiter: limiter,
		audit:         newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:       NewMetrics(cfg.Metrics),
		passwordHash:  hasher,
		tokens:        tokens,
		otpSender:     b.otpSender,
	}

	b.built = true
	return e, nil
}
