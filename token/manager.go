package token

import (
	"bytes"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config carries the three independent signing secrets and their
// lifetimes. Registration tokens gate the email-verification flow;
// access and refresh tokens carry authenticated sessions. Keeping the
// secrets distinct prevents a token minted for one purpose from being
// accepted for another.
type Config struct {
	RegistrationSecret []byte
	AccessSecret       []byte
	RefreshSecret      []byte

	RegistrationTTL time.Duration
	AccessTTL       time.Duration
	RefreshTTL      time.Duration

	Issuer string
	Leeway time.Duration
}

// Manager signs and verifies the workflow tokens (HS256).
type Manager struct {
	config Config
}

// RegistrationClaims ride on tokens handed out during account
// provisioning. They bind the caller to one OtpChallenge document.
type RegistrationClaims struct {
	VerificationID string `json:"verificationId"`
	Email          string `json:"email"`
	jwt.RegisteredClaims
}

// SessionClaims ride on access and refresh tokens.
type SessionClaims struct {
	UserID    string `json:"userId"`
	ProfileID string `json:"profileId,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.RegistrationSecret) == 0 || len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("all three token secrets are required")
	}
	if bytes.Equal(cfg.RegistrationSecret, cfg.AccessSecret) ||
		bytes.Equal(cfg.RegistrationSecret, cfg.RefreshSecret) ||
		bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("token secrets must be pairwise distinct")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RegistrationTTL <= 0 {
		// Observed default: registration tokens live as long as refresh
		// tokens so the client can resume verification later.
		cfg.RegistrationTTL = cfg.RefreshTTL
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// IssueRegistration mints a registration-flow token bound to one
// verification document.
func (m *Manager) IssueRegistration(verificationID, email string) (string, error) {
	claims := RegistrationClaims{
		VerificationID:   verificationID,
		Email:            email,
		RegisteredClaims: m.registered(m.config.RegistrationTTL),
	}
	return m.sign(claims, m.config.RegistrationSecret)
}

// ParseRegistration verifies a registration-flow token. The returned
// error is opaque: callers learn that the token is unusable, not why.
func (m *Manager) ParseRegistration(tokenStr string) (*RegistrationClaims, error) {
	claims := &RegistrationClaims{}
	if err := m.parse(tokenStr, claims, m.config.RegistrationSecret); err != nil {
		return nil, err
	}
	if claims.VerificationID == "" {
		return nil, errors.New("token missing verification id")
	}
	return claims, nil
}

// IssueAccess mints a short-lived access token.
func (m *Manager) IssueAccess(userID, profileID, role string) (string, error) {
	claims := SessionClaims{
		UserID:           userID,
		ProfileID:        profileID,
		Role:             role,
		RegisteredClaims: m.registered(m.config.AccessTTL),
	}
	return m.sign(claims, m.config.AccessSecret)
}

// IssueRefresh mints a long-lived refresh token carrying the same claim
// payload as the access token it accompanies.
func (m *Manager) IssueRefresh(userID, profileID, role string) (string, error) {
	claims := SessionClaims{
		UserID:           userID,
		ProfileID:        profileID,
		Role:             role,
		RegisteredClaims: m.registered(m.config.RefreshTTL),
	}
	return m.sign(claims, m.config.RefreshSecret)
}

// ParseAccess verifies an access token.
func (m *Manager) ParseAccess(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(tokenStr, claims, m.config.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token.
func (m *Manager) ParseRefresh(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(tokenStr, claims, m.config.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	rc := jwt.RegisteredClaims{
		// A unique jti keeps two tokens minted for the same subject in
		// the same second from being byte-identical.
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	if m.config.Issuer != "" {
		rc.Issuer = m.config.Issuer
	}
	return rc
}

func (m *Manager) sign(claims jwt.Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
