package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const defaultCost = 10

// Config holds the bcrypt work factor. A zero Cost selects the default
// cost of 10, matching what finalized account hashes were produced with.
type Config struct {
	Cost int
}

// Bcrypt is a one-way hasher for passwords and OTPs. Verification never
// reports why a comparison failed beyond match/no-match.
type Bcrypt struct {
	cost int
}

// NewBcrypt validates cfg and returns a ready hasher.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = defaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}

	return &Bcrypt{cost: cost}, nil
}

// Hash returns the bcrypt hash of secret.
func (b *Bcrypt) Hash(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("empty secret")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", errors.New("credential hashing failed")
	}
	return string(hash), nil
}

// Verify reports whether secret matches encodedHash. A mismatch is
// (false, nil); any other failure is an opaque error so that callers
// cannot distinguish malformed hashes from store corruption.
func (b *Bcrypt) Verify(secret, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, errors.New("credential verification failed")
}
