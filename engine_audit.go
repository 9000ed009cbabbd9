package shelfauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventRegistrationSubmitted = "registration_submitted"
	auditEventRegistrationRejected  = "registration_rejected"
	auditEventOTPResent             = "otp_resent"
	auditEventOTPResendFailure      = "otp_resend_failure"
	auditEventOTPVerified           = "otp_verified"
	auditEventOTPVerifyFailure      = "otp_verify_failure"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRateLimitTriggered    = "rate_limit_triggered"
)

// AuditErrorCode is the stable machine-readable error label carried on
// failed audit events.
type AuditErrorCode string

const (
	auditErrDuplicateRoll   AuditErrorCode = "duplicate_roll"
	auditErrDuplicateEmail  AuditErrorCode = "duplicate_email"
	auditErrInvalidToken    AuditErrorCode = "invalid_token"
	auditErrNotFound        AuditErrorCode = "not_found"
	auditErrAlreadyVerified AuditErrorCode = "already_verified"
	auditErrOTPExpired      AuditErrorCode = "otp_expired"
	auditErrWrongOTP        AuditErrorCode = "wrong_otp"
	auditErrAccountBlocked  AuditErrorCode = "account_blocked"
	auditErrBadCredentials  AuditErrorCode = "bad_credentials"
	auditErrWrongOldSecret  AuditErrorCode = "wrong_old_password"
	auditErrUnauthorized    AuditErrorCode = "unauthorized"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRollTaken):
		return auditErrDuplicateRoll
	case errors.Is(err, ErrEmailTaken):
		return auditErrDuplicateEmail
	case errors.Is(err, ErrWorkflowTokenInvalid), errors.Is(err, ErrRefreshTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrChallengeNotFound), errors.Is(err, ErrUserNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrAlreadyVerified):
		return auditErrAlreadyVerified
	case errors.Is(err, ErrOTPExpired):
		return auditErrOTPExpired
	case errors.Is(err, ErrWrongOTP):
		return auditErrWrongOTP
	case errors.Is(err, ErrAccountBlocked):
		return auditErrAccountBlocked
	case errors.Is(err, ErrAccountNotFound):
		// Wrong password and missing identity share one label, same as
		// the caller-facing error.
		return auditErrBadCredentials
	case errors.Is(err, ErrWrongOldPassword):
		return auditErrWrongOldSecret
	case errors.Is(err, ErrRefreshTokenRequired), errors.Is(err, ErrRefreshClaimsInvalid):
		return auditErrUnauthorized
	case errors.Is(err, ErrResendRateLimited):
		return auditErrRateLimited
	default:
		return auditErrInternal
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}
