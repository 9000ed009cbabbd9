// Package memstore implements the shelfauth store interfaces in memory.
// It backs the examples and doubles as a lightweight substrate for
// integration-style tests; it is not meant for production durability.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shahriar-hub/shelfauth"
)

// Store holds every collection behind one mutex. Records are copied on
// the way in and out, so callers never share memory with the store. The
// per-collection interfaces are exposed through Accounts, Registrations,
// and Verifications; Store itself is the unit of work.
type Store struct {
	mu            sync.Mutex
	txnMu         sync.Mutex
	accounts      map[string]shelfauth.Account
	registrations map[string]shelfauth.PendingRegistration
	challenges    map[string]shelfauth.OtpChallenge
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts:      make(map[string]shelfauth.Account),
		registrations: make(map[string]shelfauth.PendingRegistration),
		challenges:    make(map[string]shelfauth.OtpChallenge),
	}
}

// Accounts returns the finalized-account view of the store.
func (s *Store) Accounts() shelfauth.AccountStore { return accountView{s} }

// Registrations returns the pending-registration view of the store.
func (s *Store) Registrations() shelfauth.RegistrationStore { return registrationView{s} }

// Verifications returns the OTP-challenge view of the store.
func (s *Store) Verifications() shelfauth.VerificationStore { return verificationView{s} }

// SeedAccount inserts an account directly, assigning an id when the
// caller left it empty. Meant for tests and example setup.
func (s *Store) SeedAccount(a shelfauth.Account) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.accounts[a.ID] = a
	return a.ID
}

// Registration returns a copy of a pending registration, or nil.
func (s *Store) Registration(id string) *shelfauth.PendingRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrations[id]
	if !ok {
		return nil
	}
	out := r
	return &out
}

// Challenge returns a copy of an OTP challenge, or nil.
func (s *Store) Challenge(id string) *shelfauth.OtpChallenge {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[id]
	if !ok {
		return nil
	}
	out := ch
	return &out
}

// Counts reports how many registrations and challenges exist. Handy for
// all-or-nothing assertions.
func (s *Store) Counts() (registrations, challenges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registrations), len(s.challenges)
}

/*
====================================
ACCOUNT VIEW
====================================
*/

type accountView struct{ s *Store }

func (v accountView) FindByID(ctx context.Context, id string) (*shelfauth.Account, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	a, ok := v.s.accounts[id]
	if !ok {
		return nil, nil
	}
	out := a
	return &out, nil
}

func (v accountView) FindByRoll(ctx context.Context, roll string) (*shelfauth.Account, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if roll == "" {
		return nil, nil
	}
	for _, a := range v.s.accounts {
		if a.Roll == roll {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (v accountView) FindByEmail(ctx context.Context, email string) (*shelfauth.Account, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	for _, a := range v.s.accounts {
		if a.Email == email {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (v accountView) FindStudent(ctx context.Context, roll string) (*shelfauth.Account, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if roll == "" {
		return nil, nil
	}
	for _, a := range v.s.accounts {
		if a.Roll == roll && a.Role == shelfauth.RoleStudent {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (v accountView) FindManagement(ctx context.Context, email string) (*shelfauth.Account, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	for _, a := range v.s.accounts {
		if a.Email == email && a.Role != shelfauth.RoleStudent {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (v accountView) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	a, ok := v.s.accounts[id]
	if !ok {
		return nil
	}
	a.LastLoginAt = at
	v.s.accounts[id] = a
	return nil
}

func (v accountView) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	a, ok := v.s.accounts[id]
	if !ok {
		return 0, nil
	}
	a.PasswordHash = hash
	a.LastPasswordChangedAt = at
	v.s.accounts[id] = a
	return 1, nil
}

/*
====================================
REGISTRATION VIEW
====================================
*/

type registrationView struct{ s *Store }

func (v registrationView) Create(ctx context.Context, reg *shelfauth.PendingRegistration) (string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	stored := *reg
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	v.s.registrations[stored.ID] = stored
	return stored.ID, nil
}

func (v registrationView) FindByID(ctx context.Context, id string) (*shelfauth.PendingRegistration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	r, ok := v.s.registrations[id]
	if !ok {
		return nil, nil
	}
	out := r
	return &out, nil
}

func (v registrationView) MarkEmailVerified(ctx context.Context, id string) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	r, ok := v.s.registrations[id]
	if !ok || r.IsVerifiedEmail {
		return 0, nil
	}
	r.IsVerifiedEmail = true
	v.s.registrations[id] = r
	return 1, nil
}

/*
====================================
VERIFICATION VIEW
====================================
*/

type verificationView struct{ s *Store }

func (v verificationView) Create(ctx context.Context, ch *shelfauth.OtpChallenge) (string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	stored := *ch
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	v.s.challenges[stored.ID] = stored
	return stored.ID, nil
}

func (v verificationView) FindByID(ctx context.Context, id string) (*shelfauth.OtpChallenge, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	ch, ok := v.s.challenges[id]
	if !ok {
		return nil, nil
	}
	out := ch
	return &out, nil
}

func (v verificationView) ReplaceOTP(ctx context.Context, id, otpHash string, expireAt time.Time) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	ch, ok := v.s.challenges[id]
	if !ok {
		return 0, nil
	}
	ch.OTPHash = otpHash
	ch.ExpireAt = expireAt
	ch.ResendCount++
	v.s.challenges[id] = ch
	return 1, nil
}

func (v verificationView) MarkVerified(ctx context.Context, id string) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	ch, ok := v.s.challenges[id]
	if !ok || ch.Status == shelfauth.ChallengeVerified {
		return 0, nil
	}
	ch.Status = shelfauth.ChallengeVerified
	v.s.challenges[id] = ch
	return 1, nil
}

/*
====================================
UNIT OF WORK
====================================
*/

// Run executes fn with all-or-nothing semantics: on error every
// collection is rolled back to its pre-fn state. Transactions are
// serialized against each other, which is enough for tests and examples.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txnMu.Lock()
	defer s.txnMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	accounts      map[string]shelfauth.Account
	registrations map[string]shelfauth.PendingRegistration
	challenges    map[string]shelfauth.OtpChallenge
}

func (s *Store) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := storeSnapshot{
		accounts:      make(map[string]shelfauth.Account, len(s.accounts)),
		registrations: make(map[string]shelfauth.PendingRegistration, len(s.registrations)),
		challenges:    make(map[string]shelfauth.OtpChallenge, len(s.challenges)),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.registrations {
		snap.registrations[k] = v
	}
	for k, v := range s.challenges {
		snap.challenges[k] = v
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = snap.accounts
	s.registrations = snap.registrations
	s.challenges = snap.challenges
}
