package shelfauth

import "errors"

// Kind classifies an engine error into the transport-agnostic category a
// caller is expected to map onto its own status codes.
type Kind uint8

const (
	// KindInternal is the fallback category for unexpected failures.
	KindInternal Kind = iota
	// KindBadRequest marks malformed or unusable input.
	KindBadRequest
	// KindUnauthorized marks missing or unprovable identity.
	KindUnauthorized
	// KindForbidden marks a known identity that is denied access.
	KindForbidden
	// KindNotFound marks a referenced record that does not exist.
	KindNotFound
	// KindNotAcceptable marks input that is well formed but rejected.
	KindNotAcceptable
)

// Error is the sentinel error type returned by all engine operations.
// Instances are compared by identity with [errors.Is], so callers can
// switch on the package-level variables below.
type Error struct {
	kind    Kind
	message string
}

func newError(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Error returns the caller-facing message.
func (e *Error) Error() string { return e.message }

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the [Kind] of err. Errors that did not originate in this
// package report [KindInternal].
func KindOf(err error) Kind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.kind
	}
	return KindInternal
}

var (
	// ErrRollTaken is returned when a registration names a roll number
	// that a finalized account already holds.
	ErrRollTaken = newError(KindNotAcceptable, "This student is already registered")
	// ErrEmailTaken is returned when a registration names an email that a
	// finalized account already holds.
	ErrEmailTaken = newError(KindNotAcceptable, "This email is already used, try another one")
	// ErrSubmissionFailed is returned when the registration write set could
	// not be committed.
	ErrSubmissionFailed = newError(KindBadRequest, "Something went wrong")
	// ErrWorkflowTokenInvalid is returned when a registration token fails
	// signature, expiry, or claim checks.
	ErrWorkflowTokenInvalid = newError(KindBadRequest, "Invalid token")
	// ErrChallengeNotFound is returned when a registration token references
	// an OTP challenge that no longer exists.
	ErrChallengeNotFound = newError(KindNotFound, "Request not found")
	// ErrAlreadyVerified is returned when the challenge behind a token has
	// already been consumed.
	ErrAlreadyVerified = newError(KindNotFound, "Email is already verified")
	// ErrOTPExpired is returned when the challenge outlived its window.
	ErrOTPExpired = newError(KindNotAcceptable, "Your OTP request has expired")
	// ErrWrongOTP is returned when the submitted code does not match the
	// stored hash.
	ErrWrongOTP = newError(KindNotAcceptable, "Wrong OTP!")
	// ErrVerificationFailed is returned when the verification write set
	// could not be committed.
	ErrVerificationFailed = newError(KindInternal, "Verification process failed")
	// ErrOTPUpdateFailed is returned when rotating a challenge's code did
	// not modify the stored document.
	ErrOTPUpdateFailed = newError(KindInternal, "Something went wrong")
	// ErrAccountNotFound covers both a missing account and a failed
	// password check at login, so callers cannot probe which identities
	// exist.
	ErrAccountNotFound = newError(KindNotFound, "Account not found")
	// ErrAccountBlocked is returned when a blocked account attempts login.
	ErrAccountBlocked = newError(KindForbidden, "Access denied: account is blocked")
	// ErrUserNotFound is returned by password change when the session's
	// subject no longer resolves to an account.
	ErrUserNotFound = newError(KindBadRequest, "User not found.")
	// ErrWrongOldPassword is returned by password change when the current
	// password does not verify.
	ErrWrongOldPassword = newError(KindNotAcceptable, "Incorrect current password.")
	// ErrPasswordUpdateFailed is returned when the new credential hash
	// could not be persisted.
	ErrPasswordUpdateFailed = newError(KindInternal, "Failed to update password.")
	// ErrRefreshTokenRequired is returned when the refresh operation
	// receives an empty token.
	ErrRefreshTokenRequired = newError(KindUnauthorized, "Refresh token is required.")
	// ErrRefreshClaimsInvalid is returned when a refresh token parses but
	// carries no usable subject.
	ErrRefreshClaimsInvalid = newError(KindUnauthorized, "Invalid refresh token.")
	// ErrRefreshTokenInvalid is returned when a refresh token fails
	// signature or expiry checks.
	ErrRefreshTokenInvalid = newError(KindBadRequest, "Invalid or expired refresh token.")
	// ErrResendRateLimited is returned when OTP resends for a challenge or
	// client address exceed the configured window.
	ErrResendRateLimited = newError(KindNotAcceptable, "Too many OTP requests, try again later")
	// ErrEngineNotReady is returned by every operation on a nil or
	// half-built engine.
	ErrEngineNotReady = newError(KindInternal, "engine not initialized")
	// ErrInternalFailure is the generic wrapper for unexpected store,
	// hashing, or signing failures whose cause is logged, never surfaced.
	ErrInternalFailure = newError(KindInternal, "Internal server error")
)
