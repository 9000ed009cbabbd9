package shelfauth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shahriar-hub/shelfauth/internal"
)

// SubmitRegistration starts the provisioning workflow for a new student.
// On success it returns a registration token the client must present to
// resend or verify the OTP; the OTP itself travels out of band through
// the configured sender.
//
// The pending registration and its OTP challenge are created in one
// transaction: a failure anywhere before commit leaves no trace of
// either.
func (e *Engine) SubmitRegistration(ctx context.Context, input RegistrationInput) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	if err := e.identityAvailable(ctx, input.Roll, input.Email); err != nil {
		if errors.Is(err, ErrRollTaken) || errors.Is(err, ErrEmailTaken) {
			e.metricInc(MetricRegistrationDuplicate)
			e.emitAudit(ctx, auditEventRegistrationRejected, false, "", input.Email, err, nil)
			return "", err
		}
		log.Print("shelfauth: registration uniqueness check failed: ", err)
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistrationRejected, false, "", input.Email, ErrInternalFailure, nil)
		return "", ErrInternalFailure
	}

	passwordHash, err := e.passwordHash.Hash(input.Password)
	if err != nil {
		log.Print("shelfauth: registration password hashing failed: ", err)
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistrationRejected, false, "", input.Email, ErrSubmissionFailed, nil)
		return "", ErrSubmissionFailed
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		log.Print("shelfauth: otp generation failed: ", err)
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistrationRejected, false, "", input.Email, ErrSubmissionFailed, nil)
		return "", ErrSubmissionFailed
	}
	otpHash, err := e.passwordHash.Hash(code)
	if err != nil {
		log.Print("shelfauth: otp hashing failed: ", err)
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistrationRejected, false, "", input.Email, ErrSubmissionFailed, nil)
		return "", ErrSubmissionFailed
	}

	now := time.Now()
	var registrationToken string

	err = e.uow.Run(ctx, func(ctx context.Context) error {
		registrationID, err := e.registrations.Create(ctx, &PendingRegistration{
			FullName:     input.FullName,
			Gender:       input.Gender,
			Roll:         input.Roll,
			Email:        input.Email,
			DepartmentID: input.DepartmentID,
			Semester:     input.Semester,
			Shift:        input.Shift,
			Session:      input.Session,
			PasswordHash: passwordHash,
			Status:       RegistrationPending,
			ExpireAt:     now.Add(e.config.Registration.TTL),
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}

		verificationID, err := e.verifications.Create(ctx, &OtpChallenge{
			Email:          input.Email,
			OTPHash:        otpHash,
			RegistrationID: registrationID,
			Status:         ChallengePending,
			ExpireAt:       now.Add(e.config.OTP.TTL),
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}

		// Minting inside the unit keeps a signing failure from leaving
		// an orphaned registration pair behind.
		registrationToken, err = e.tokens.IssueRegistration(verificationID, input.Email)
		return err
	})
	if err != nil {
		log.Print("shelfauth: registration submission aborted: ", err)
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistrationRejected, false, "", input.Email, ErrSubmissionFailed, nil)
		return "", ErrSubmissionFailed
	}

	e.deliverOTP(ctx, input.Email, code)

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistrationSubmitted, true, "", input.Email, nil, func() map[string]string {
		return map[string]string{
			"roll": input.Roll,
		}
	})
	return registrationToken, nil
}

// ResendOTP rotates the passcode on an outstanding challenge. The stored
// code and expiry are replaced in place, so the previous OTP stops
// working immediately, and a fresh registration token is returned.
func (e *Engine) ResendOTP(ctx context.Context, registrationToken string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	claims, err := e.tokens.ParseRegistration(registrationToken)
	if err != nil {
		e.metricInc(MetricOTPResendFailure)
		e.emitAudit(ctx, auditEventOTPResendFailure, false, "", "", ErrWorkflowTokenInvalid, nil)
		return "", ErrWorkflowTokenInvalid
	}

	if e.resendLimiter != nil {
		if err := e.resendLimiter.Check(ctx, claims.VerificationID, clientIPFromContext(ctx)); err != nil {
			if errors.Is(err, errResendRateLimited) {
				e.metricInc(MetricOTPResendRateLimited)
				e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", claims.Email, ErrResendRateLimited, func() map[string]string {
					return map[string]string{
						"scope": "otp_resend",
					}
				})
				return "", ErrResendRateLimited
			}
			log.Print("shelfauth: resend limiter unavailable: ", err)
			e.metricInc(MetricOTPResendFailure)
			e.emitAudit(ctx, auditEventOTPResendFailure, false, "", claims.Email, ErrInternalFailure, nil)
			return "", ErrInternalFailure
		}
	}

	challenge, _, err := e.loadActiveChallenge(ctx, claims.VerificationID)
	if err != nil {
		e.metricInc(MetricOTPResendFailure)
		e.emitAudit(ctx, auditEventOTPResendFailure, false, "", claims.Email, err, nil)
		return "", err
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		log.Print("shelfauth: otp generation failed: ", err)
		e.metricInc(MetricOTPResendFailure)
		e.emitAudit(ctx, auditEventOTPResendFailure, false, "", claims.Email, ErrOTPUpdateFailed, nil)
		return "", ErrOTPUpdateFailed
	}
	otpHash, err := e.passwordHash.Hash(code)
	if err != nil {
		log.Print("shelfauth: otp hashing failed: ", err)
		e.metricInc(MetricOTPResendFailure)
		e.emitAudit(ctx, auditEventOTPResendFailure, false, "", claims.Email, ErrOTPUpdateFailed, nil)
		return "", ErrOTPUpdateFailed
	}

	modified, err := e.verifications.ReplaceOTP(ctx, challenge.ID, otpHash, time.Now().Add(e.config.OTP.TTL))
	if err != nil {
		log.Print("shelfauth: otp rotation failed: ", err)
		e.metricInc(MetricOTPResendFailure)
		e.emitAudit(ctx, auditEventOTPResendFailure, false, "", claims.Email, ErrOTPUpdateFailed, nil)
		return "", ErrOTPUpdateFailed
	}
	if modified == 0 {
		e.metricInc(MetricOTPResendFailure)
		e.emitAudit(ctx, auditEventOTPResendFailure, false, "", claims.Email, ErrOTPUpdateFailed, nil)
		return "", ErrOTPUpdateFailed
	}

	freshToken, err := e.tokens.IssueRegistration(challenge.ID, challenge.Email)
	if err != nil {
		log.Print("shelfauth: registration token signing failed: ", err)
		e.metricInc(MetricOTPResendFailure)
		e.emitAudit(ctx, auditEventOTPResendFailure, false, "", claims.Email, ErrInternalFailure, nil)
		return "", ErrInternalFailure
	}

	e.deliverOTP(ctx, challenge.Email, code)

	e.metricInc(MetricOTPResendSuccess)
	e.emitAudit(ctx, auditEventOTPResent, true, "", challenge.Email, nil, nil)
	return freshToken, nil
}

func (e *Engine) deliverOTP(ctx context.Context, email, code string) {
	if e.otpSender == nil {
		return
	}
	if err := e.otpSender.SendOTP(ctx, email, code); err != nil {
		log.Print("shelfauth: otp delivery failed: ", err)
	}
}
