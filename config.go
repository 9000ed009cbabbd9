package shelfauth

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Zero values are filled
// with the defaults from New() when the Builder runs; secrets never
// default and must be provided.
type Config struct {
	Token        TokenConfig
	OTP          OTPConfig
	Registration RegistrationConfig
	Password     PasswordConfig
	ResendLimit  ResendLimitConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the three independent token purposes. The
// registration secret must differ from both session secrets so a
// registration token can never be replayed as a session token.
type TokenConfig struct {
	RegistrationSecret []byte
	AccessSecret       []byte
	RefreshSecret      []byte

	// RegistrationTTL defaults to RefreshTTL when zero. Registration
	// tokens deliberately live as long as a refresh token so a client can
	// resume verification much later.
	RegistrationTTL time.Duration
	AccessTTL       time.Duration
	RefreshTTL      time.Duration

	Issuer string
	Leeway time.Duration
}

// OTPConfig controls one-time passcode generation.
type OTPConfig struct {
	Digits int           // fixed width, default 6
	TTL    time.Duration // challenge lifetime, default 10m
}

// RegistrationConfig controls pending-registration lifetime.
type RegistrationConfig struct {
	TTL time.Duration // default 7 days
}

// PasswordConfig controls the bcrypt credential primitive.
type PasswordConfig struct {
	Cost int // bcrypt cost, default 10
}

// ResendLimitConfig gates OTP resends through a Redis fixed-window
// counter. Off by default; resend counting is always modeled on the
// challenge document regardless.
type ResendLimitConfig struct {
	Enabled         bool
	MaxPerChallenge int
	MaxPerIP        int
	Window          time.Duration
	KeyPrefix       string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    10 * time.Minute,
		},
		Registration: RegistrationConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Cost: 10,
		},
		ResendLimit: ResendLimitConfig{
			Enabled:         false,
			MaxPerChallenge: 5,
			MaxPerIP:        20,
			Window:          10 * time.Minute,
			KeyPrefix:       "sa",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.RegistrationSecret = cloneBytes(cfg.Token.RegistrationSecret)
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// applyDefaults fills zero-valued tunables from defaultConfig, so a
// Config assembled from a literal behaves like one derived from [New].
// Secrets are never defaulted, and booleans keep their zero value
// because "unset" and "off" are indistinguishable.
func (c *Config) applyDefaults() {
	d := defaultConfig()

	if c.Token.AccessTTL == 0 {
		c.Token.AccessTTL = d.Token.AccessTTL
	}
	if c.Token.RefreshTTL == 0 {
		c.Token.RefreshTTL = d.Token.RefreshTTL
	}
	if c.OTP.Digits == 0 {
		c.OTP.Digits = d.OTP.Digits
	}
	if c.OTP.TTL == 0 {
		c.OTP.TTL = d.OTP.TTL
	}
	if c.Registration.TTL == 0 {
		c.Registration.TTL = d.Registration.TTL
	}
	if c.Password.Cost == 0 {
		c.Password.Cost = d.Password.Cost
	}
	if c.ResendLimit.MaxPerChallenge == 0 {
		c.ResendLimit.MaxPerChallenge = d.ResendLimit.MaxPerChallenge
	}
	if c.ResendLimit.MaxPerIP == 0 {
		c.ResendLimit.MaxPerIP = d.ResendLimit.MaxPerIP
	}
	if c.ResendLimit.Window == 0 {
		c.ResendLimit.Window = d.ResendLimit.Window
	}
	if c.ResendLimit.KeyPrefix == "" {
		c.ResendLimit.KeyPrefix = d.ResendLimit.KeyPrefix
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = d.Audit.BufferSize
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency. Secret strength and pairwise
// distinctness are enforced again by the token manager at build time.
func (c *Config) Validate() error {
	if len(c.Token.RegistrationSecret) == 0 {
		return errors.New("Token.RegistrationSecret is required")
	}
	if len(c.Token.AccessSecret) == 0 {
		return errors.New("Token.AccessSecret is required")
	}
	if len(c.Token.RefreshSecret) == 0 {
		return errors.New("Token.RefreshSecret is required")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token.AccessTTL must be positive")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token.RefreshTTL must be positive")
	}
	if c.Token.RegistrationTTL < 0 {
		return errors.New("Token.RegistrationTTL must not be negative")
	}

	if c.OTP.Digits < 4 || c.OTP.Digits > 8 {
		return errors.New("OTP.Digits must be between 4 and 8")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP.TTL must be positive")
	}

	if c.Registration.TTL <= 0 {
		return errors.New("Registration.TTL must be positive")
	}
	if c.Registration.TTL < c.OTP.TTL {
		return errors.New("Registration.TTL must not be shorter than OTP.TTL")
	}

	if c.ResendLimit.Enabled {
		if c.ResendLimit.MaxPerChallenge <= 0 {
			return errors.New("ResendLimit.MaxPerChallenge must be positive when the limiter is enabled")
		}
		if c.ResendLimit.MaxPerIP < 0 {
			return errors.New("ResendLimit.MaxPerIP must not be negative")
		}
		if c.ResendLimit.Window <= 0 {
			return errors.New("ResendLimit.Window must be positive when the limiter is enabled")
		}
		if c.ResendLimit.KeyPrefix == "" {
			return errors.New("ResendLimit.KeyPrefix is required when the limiter is enabled")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when auditing is enabled")
	}

	return nil
}
