package shelfauth

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type mockAccounts struct {
	byID map[string]Account

	findErr        error
	lastLoginErr   error
	lastLoginCalls int
	updateErr      error
	updateModified *int64
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{byID: make(map[string]Account)}
}

func (m *mockAccounts) seed(a Account) string {
	if a.ID == "" {
		a.ID = fmt.Sprintf("acct-%d", len(m.byID)+1)
	}
	m.byID[a.ID] = a
	return a.ID
}

func (m *mockAccounts) FindByID(ctx context.Context, id string) (*Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	out := a
	return &out, nil
}

func (m *mockAccounts) FindByRoll(ctx context.Context, roll string) (*Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if roll == "" {
		return nil, nil
	}
	for _, a := range m.byID {
		if a.Roll == roll {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.byID {
		if a.Email == email {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockAccounts) FindStudent(ctx context.Context, roll string) (*Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if roll == "" {
		return nil, nil
	}
	for _, a := range m.byID {
		if a.Roll == roll && a.Role == RoleStudent {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockAccounts) FindManagement(ctx context.Context, email string) (*Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.byID {
		if a.Email == email && a.Role != RoleStudent {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockAccounts) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	m.lastLoginCalls++
	if m.lastLoginErr != nil {
		return m.lastLoginErr
	}
	a, ok := m.byID[id]
	if !ok {
		return nil
	}
	a.LastLoginAt = at
	m.byID[id] = a
	return nil
}

func (m *mockAccounts) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) (int64, error) {
	if m.updateErr != nil {
		return 0, m.updateErr
	}
	if m.updateModified != nil {
		return *m.updateModified, nil
	}
	a, ok := m.byID[id]
	if !ok {
		return 0, nil
	}
	a.PasswordHash = hash
	a.LastPasswordChangedAt = at
	m.byID[id] = a
	return 1, nil
}

type mockRegistrations struct {
	byID map[string]PendingRegistration
	seq  int

	createErr    error
	findErr      error
	markErr      error
	markModified *int64
}

func newMockRegistrations() *mockRegistrations {
	return &mockRegistrations{byID: make(map[string]PendingRegistration)}
}

func (m *mockRegistrations) Create(ctx context.Context, reg *PendingRegistration) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.seq++
	stored := *reg
	stored.ID = fmt.Sprintf("reg-%d", m.seq)
	m.byID[stored.ID] = stored
	return stored.ID, nil
}

func (m *mockRegistrations) FindByID(ctx context.Context, id string) (*PendingRegistration, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	r, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	out := r
	return &out, nil
}

func (m *mockRegistrations) MarkEmailVerified(ctx context.Context, id string) (int64, error) {
	if m.markErr != nil {
		return 0, m.markErr
	}
	if m.markModified != nil {
		return *m.markModified, nil
	}
	r, ok := m.byID[id]
	if !ok || r.IsVerifiedEmail {
		return 0, nil
	}
	r.IsVerifiedEmail = true
	m.byID[id] = r
	return 1, nil
}

type mockVerifications struct {
	byID map[string]OtpChallenge
	seq  int

	createErr       error
	findErr         error
	replaceErr      error
	replaceModified *int64
	markErr         error
	markModified    *int64
}

func newMockVerifications() *mockVerifications {
	return &mockVerifications{byID: make(map[string]OtpChallenge)}
}

func (m *mockVerifications) Create(ctx context.Context, ch *OtpChallenge) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.seq++
	stored := *ch
	stored.ID = fmt.Sprintf("ver-%d", m.seq)
	m.byID[stored.ID] = stored
	return stored.ID, nil
}

func (m *mockVerifications) FindByID(ctx context.Context, id string) (*OtpChallenge, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	ch, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	out := ch
	return &out, nil
}

func (m *mockVerifications) ReplaceOTP(ctx context.Context, id, otpHash string, expireAt time.Time) (int64, error) {
	if m.replaceErr != nil {
		return 0, m.replaceErr
	}
	if m.replaceModified != nil {
		return *m.replaceModified, nil
	}
	ch, ok := m.byID[id]
	if !ok {
		return 0, nil
	}
	ch.OTPHash = otpHash
	ch.ExpireAt = expireAt
	ch.ResendCount++
	m.byID[id] = ch
	return 1, nil
}

func (m *mockVerifications) MarkVerified(ctx context.Context, id string) (int64, error) {
	if m.markErr != nil {
		return 0, m.markErr
	}
	if m.markModified != nil {
		return *m.markModified, nil
	}
	ch, ok := m.byID[id]
	if !ok || ch.Status == ChallengeVerified {
		return 0, nil
	}
	ch.Status = ChallengeVerified
	m.byID[id] = ch
	return 1, nil
}

// mockUnitOfWork rolls the three mock stores back to their pre-fn state
// when fn fails, mirroring a real transaction abort.
type mockUnitOfWork struct {
	accounts      *mockAccounts
	registrations *mockRegistrations
	verifications *mockVerifications

	runErr   error
	runCalls int
}

func (m *mockUnitOfWork) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	m.runCalls++
	if m.runErr != nil {
		return m.runErr
	}

	accounts := cloneMap(m.accounts.byID)
	registrations := cloneMap(m.registrations.byID)
	verifications := cloneMap(m.verifications.byID)

	if err := fn(ctx); err != nil {
		m.accounts.byID = accounts
		m.registrations.byID = registrations
		m.verifications.byID = verifications
		return err
	}
	return nil
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type captureSender struct {
	emails []string
	codes  []string
	err    error
}

func (c *captureSender) SendOTP(ctx context.Context, email, code string) error {
	c.emails = append(c.emails, email)
	c.codes = append(c.codes, code)
	return c.err
}

func (c *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	if len(c.codes) == 0 {
		t.Fatal("expected an OTP to have been delivered")
	}
	return c.codes[len(c.codes)-1]
}

type testFixture struct {
	accounts      *mockAccounts
	registrations *mockRegistrations
	verifications *mockVerifications
	uow           *mockUnitOfWork
	sender        *captureSender
}

func newTestConfig() Config {
	cfg := defaultConfig()
	cfg.Token.RegistrationSecret = []byte("registration-secret")
	cfg.Token.AccessSecret = []byte("access-secret")
	cfg.Token.RefreshSecret = []byte("refresh-secret")
	// Minimum bcrypt cost keeps the suite fast.
	cfg.Password.Cost = 4
	return cfg
}

func newTestFixture() *testFixture {
	f := &testFixture{
		accounts:      newMockAccounts(),
		registrations: newMockRegistrations(),
		verifications: newMockVerifications(),
		sender:        &captureSender{},
	}
	f.uow = &mockUnitOfWork{
		accounts:      f.accounts,
		registrations: f.registrations,
		verifications: f.verifications,
	}
	return f
}

func newTestEngine(t *testing.T, f *testFixture) *Engine {
	t.Helper()
	return newTestEngineWithConfig(t, f, newTestConfig())
}

func newTestEngineWithConfig(t *testing.T, f *testFixture, cfg Config) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithStores(f.accounts, f.registrations, f.verifications).
		WithUnitOfWork(f.uow).
		WithOTPSender(f.sender).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func studentInput() RegistrationInput {
	return RegistrationInput{
		FullName:     "Nadia Rahman",
		Gender:       GenderFemale,
		Roll:         "12345",
		Email:        "a@x.com",
		DepartmentID: "dept-cse",
		Semester:     4,
		Shift:        ShiftMorning,
		Session:      "2023-2024",
		Password:     "secret1",
	}
}

func seedStudent(t *testing.T, e *Engine, f *testFixture, roll, email, plainPassword string) string {
	t.Helper()
	hash, err := e.passwordHash.Hash(plainPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return f.accounts.seed(Account{
		Role:         RoleStudent,
		Roll:         roll,
		Email:        email,
		PasswordHash: hash,
		Status:       AccountActive,
		StudentID:    "profile-" + roll,
	})
}

func int64Ptr(v int64) *int64 { return &v }
