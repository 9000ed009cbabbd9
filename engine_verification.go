package shelfauth

import (
	"context"
	"errors"
	"log"
	"time"
)

// VerifyOTP transitions a challenge from Pending to Verified. The
// challenge status and the linked registration's email flag move in one
// transaction; a partial flip never survives.
func (e *Engine) VerifyOTP(ctx context.Context, registrationToken, guess string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.ParseRegistration(registrationToken)
	if err != nil {
		e.metricInc(MetricOTPVerifyFailure)
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", "", ErrWorkflowTokenInvalid, nil)
		return ErrWorkflowTokenInvalid
	}

	challenge, registration, err := e.loadActiveChallenge(ctx, claims.VerificationID)
	if err != nil {
		e.metricInc(MetricOTPVerifyFailure)
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", claims.Email, err, nil)
		return err
	}

	match, err := e.passwordHash.Verify(guess, challenge.OTPHash)
	if err != nil {
		log.Print("shelfauth: otp comparison failed: ", err)
		e.metricInc(MetricOTPVerifyFailure)
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", claims.Email, ErrVerificationFailed, nil)
		return ErrVerificationFailed
	}
	if !match {
		e.metricInc(MetricOTPVerifyFailure)
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", claims.Email, ErrWrongOTP, nil)
		return ErrWrongOTP
	}

	err = e.uow.Run(ctx, func(ctx context.Context) error {
		modified, err := e.verifications.MarkVerified(ctx, challenge.ID)
		if err != nil {
			return err
		}
		if modified == 0 {
			return ErrVerificationFailed
		}

		modified, err = e.registrations.MarkEmailVerified(ctx, registration.ID)
		if err != nil {
			return err
		}
		if modified == 0 {
			return ErrVerificationFailed
		}
		return nil
	})
	if err != nil {
		log.Print("shelfauth: otp verification aborted: ", err)
		e.metricInc(MetricOTPVerifyFailure)
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", claims.Email, ErrVerificationFailed, nil)
		return ErrVerificationFailed
	}

	e.metricInc(MetricOTPVerifySuccess)
	e.emitAudit(ctx, auditEventOTPVerified, true, "", challenge.Email, nil, nil)
	return nil
}

// loadActiveChallenge resolves a challenge by id and applies the checks
// every post-submission step shares: the challenge must exist, must not
// already be consumed, must not be expired, its registration must still
// exist, and the applied-for identity must still be available.
func (e *Engine) loadActiveChallenge(ctx context.Context, verificationID string) (*OtpChallenge, *PendingRegistration, error) {
	challenge, err := e.verifications.FindByID(ctx, verificationID)
	if err != nil {
		log.Print("shelfauth: challenge lookup failed: ", err)
		return nil, nil, ErrInternalFailure
	}
	if challenge == nil {
		return nil, nil, ErrChallengeNotFound
	}
	if challenge.Status == ChallengeVerified {
		return nil, nil, ErrAlreadyVerified
	}
	if challenge.Status == ChallengeExpired || time.Now().After(challenge.ExpireAt) {
		return nil, nil, ErrOTPExpired
	}

	registration, err := e.registrations.FindByID(ctx, challenge.RegistrationID)
	if err != nil {
		log.Print("shelfauth: registration lookup failed: ", err)
		return nil, nil, ErrInternalFailure
	}
	if registration == nil {
		return nil, nil, ErrChallengeNotFound
	}

	// The identity may have been finalized by someone else since
	// submission; surface that before touching the challenge.
	if err := e.identityAvailable(ctx, registration.Roll, registration.Email); err != nil {
		if errors.Is(err, ErrRollTaken) || errors.Is(err, ErrEmailTaken) {
			return nil, nil, err
		}
		log.Print("shelfauth: uniqueness re-check failed: ", err)
		return nil, nil, ErrInternalFailure
	}

	return challenge, registration, nil
}
