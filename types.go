package shelfauth

import (
	"context"
	"time"
)

// Role names the account family an identity belongs to. Students
// authenticate by roll number; every other role authenticates by email.
type Role string

const (
	// RoleStudent is the only role provisioned through the registration
	// workflow.
	RoleStudent Role = "Student"
	// RoleLibrarian is an exported role constant.
	RoleLibrarian Role = "Librarian"
	// RoleModerator is an exported role constant.
	RoleModerator Role = "Moderator"
	// RoleAdmin is an exported role constant.
	RoleAdmin Role = "Admin"
	// RoleSuperAdmin is an exported role constant.
	RoleSuperAdmin Role = "Super_Admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLibrarian, RoleModerator, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Management reports whether r authenticates through the management login
// path.
func (r Role) Management() bool {
	return r.Valid() && r != RoleStudent
}

// AccountStatus is the lifecycle state of a finalized account.
type AccountStatus string

const (
	// AccountActive is an exported account status constant.
	AccountActive AccountStatus = "Active"
	// AccountBlocked is an exported account status constant.
	AccountBlocked AccountStatus = "Blocked"
	// AccountDeleted is an exported account status constant.
	AccountDeleted AccountStatus = "Deleted"
)

// RegistrationStatus is the lifecycle state of a pending registration.
type RegistrationStatus string

const (
	// RegistrationPending is an exported registration status constant.
	RegistrationPending RegistrationStatus = "Pending"
	// RegistrationApproved is an exported registration status constant.
	RegistrationApproved RegistrationStatus = "Approved"
	// RegistrationRejected is an exported registration status constant.
	RegistrationRejected RegistrationStatus = "Rejected"
	// RegistrationExpired is an exported registration status constant.
	RegistrationExpired RegistrationStatus = "Expired"
)

// ChallengeStatus is the lifecycle state of an OTP challenge.
type ChallengeStatus string

const (
	// ChallengePending is an exported challenge status constant.
	ChallengePending ChallengeStatus = "Pending"
	// ChallengeVerified is an exported challenge status constant.
	ChallengeVerified ChallengeStatus = "Verified"
	// ChallengeExpired is an exported challenge status constant.
	ChallengeExpired ChallengeStatus = "Expired"
)

// Gender is an applicant profile attribute.
type Gender string

const (
	// GenderMale is an exported gender constant.
	GenderMale Gender = "Male"
	// GenderFemale is an exported gender constant.
	GenderFemale Gender = "Female"
)

// Shift is the class shift an applicant attends.
type Shift string

const (
	// ShiftMorning is an exported shift constant.
	ShiftMorning Shift = "Morning"
	// ShiftDay is an exported shift constant.
	ShiftDay Shift = "Day"
)

// Account is a finalized, authenticatable identity. Accounts are created
// by an external approval step that promotes a verified registration; the
// engine only reads them and updates login/password bookkeeping.
type Account struct {
	ID           string
	Role         Role
	Roll         string // students only, unique when present
	Email        string
	PasswordHash string
	Status       AccountStatus

	// Role-specific profile references. At most one is populated,
	// matching Role.
	StudentID       string
	LibrarianID     string
	AdministratorID string

	LastLoginAt           time.Time
	LastPasswordChangedAt time.Time
}

// ProfileID returns the profile reference matching the account's role.
// The mapping is exhaustive over the known roles so an unmapped role can
// never silently select the wrong profile field.
func (a *Account) ProfileID() string {
	if a == nil {
		return ""
	}
	switch a.Role {
	case RoleStudent:
		return a.StudentID
	case RoleLibrarian:
		return a.LibrarianID
	case RoleModerator, RoleAdmin, RoleSuperAdmin:
		return a.AdministratorID
	}
	return ""
}

// PendingRegistration is a not-yet-finalized account application. It is
// created on registration submission and flipped to email-verified by the
// OTP workflow; approval and promotion to an Account happen elsewhere.
type PendingRegistration struct {
	ID              string
	FullName        string
	Gender          Gender
	Roll            string
	Email           string
	DepartmentID    string
	Semester        int // 1..8
	Shift           Shift
	Session         string // "YYYY-YYYY"
	PasswordHash    string
	IsVerifiedEmail bool
	Status          RegistrationStatus
	RejectReason    string
	ExpireAt        time.Time
	CreatedAt       time.Time
}

// OtpChallenge is one outstanding OTP gate tied 1:1 to a pending
// registration. A resend rotates the code and expiry in place rather than
// creating a second challenge.
type OtpChallenge struct {
	ID             string
	Email          string
	OTPHash        string
	ResendCount    int
	RegistrationID string
	Status         ChallengeStatus
	ExpireAt       time.Time
	CreatedAt      time.Time
}

// RegistrationInput is the applicant profile submitted to
// [Engine.SubmitRegistration]. Shape validation (formats, ranges) is the
// caller's concern; the engine only enforces identity uniqueness.
type RegistrationInput struct {
	FullName     string
	Gender       Gender
	Roll         string
	Email        string
	DepartmentID string
	Semester     int
	Shift        Shift
	Session      string
	Password     string
}

// TokenPair carries the access and refresh tokens issued on login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AccountStore is the finalized-account side of the durable store.
// Lookups return (nil, nil) when no document matches.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByRoll(ctx context.Context, roll string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindStudent matches {roll, role=Student}; FindManagement matches
	// {email, role≠Student}.
	FindStudent(ctx context.Context, roll string) (*Account, error)
	FindManagement(ctx context.Context, email string) (*Account, error)

	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// UpdatePasswordHash returns the number of documents modified.
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) (int64, error)
}

// RegistrationStore persists pending registrations. Lookups return
// (nil, nil) when no document matches.
type RegistrationStore interface {
	Create(ctx context.Context, reg *PendingRegistration) (string, error)
	FindByID(ctx context.Context, id string) (*PendingRegistration, error)
	// MarkEmailVerified returns the number of documents modified.
	MarkEmailVerified(ctx context.Context, id string) (int64, error)
}

// VerificationStore persists OTP challenges. Lookups return (nil, nil)
// when no document matches.
type VerificationStore interface {
	Create(ctx context.Context, ch *OtpChallenge) (string, error)
	FindByID(ctx context.Context, id string) (*OtpChallenge, error)
	// ReplaceOTP swaps the stored hash and expiry in place and bumps the
	// resend counter. Returns the number of documents modified.
	ReplaceOTP(ctx context.Context, id, otpHash string, expireAt time.Time) (int64, error)
	// MarkVerified returns the number of documents modified.
	MarkVerified(ctx context.Context, id string) (int64, error)
}

// UnitOfWork runs fn transactionally: every store write staged inside fn
// commits if fn returns nil and rolls back if it returns an error. The
// ctx passed to fn must be used for all store calls inside the unit.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// OTPSender delivers a plaintext OTP out of band after the owning
// transaction has committed. Delivery failures are logged, never surfaced
// to the caller.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string) error
}
