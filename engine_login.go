package shelfauth

import (
	"context"
	"log"
	"time"
)

// StudentLogin authenticates a student by roll number.
//
// A wrong password and an unknown roll return the identical error value,
// so a caller probing the login surface cannot tell which identities
// exist.
func (e *Engine) StudentLogin(ctx context.Context, roll, plainPassword string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer e.observeLoginLatency(start)

	account, err := e.accounts.FindStudent(ctx, roll)
	if err != nil {
		log.Print("shelfauth: student lookup failed: ", err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInternalFailure, nil)
		return nil, ErrInternalFailure
	}

	return e.completeLogin(ctx, account, plainPassword)
}

// ManagementLogin authenticates a non-student role by email. The same
// enumeration-resistance property as [Engine.StudentLogin] applies.
func (e *Engine) ManagementLogin(ctx context.Context, email, plainPassword string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer e.observeLoginLatency(start)

	account, err := e.accounts.FindManagement(ctx, email)
	if err != nil {
		log.Print("shelfauth: management lookup failed: ", err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", email, ErrInternalFailure, nil)
		return nil, ErrInternalFailure
	}

	return e.completeLogin(ctx, account, plainPassword)
}

func (e *Engine) completeLogin(ctx context.Context, account *Account, plainPassword string) (*TokenPair, error) {
	// Deleted accounts are indistinguishable from absent ones.
	if account == nil || account.Status == AccountDeleted {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrAccountNotFound, nil)
		return nil, ErrAccountNotFound
	}

	if account.Status == AccountBlocked {
		e.metricInc(MetricLoginBlocked)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, account.Email, ErrAccountBlocked, nil)
		return nil, ErrAccountBlocked
	}

	match, err := e.passwordHash.Verify(plainPassword, account.PasswordHash)
	if err != nil {
		log.Print("shelfauth: password verification failed: ", err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, account.Email, ErrInternalFailure, nil)
		return nil, ErrInternalFailure
	}
	if !match {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, account.Email, ErrAccountNotFound, nil)
		return nil, ErrAccountNotFound
	}

	accessToken, err := e.tokens.IssueAccess(account.ID, account.ProfileID(), string(account.Role))
	if err != nil {
		log.Print("shelfauth: access token signing failed: ", err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, account.Email, ErrInternalFailure, nil)
		return nil, ErrInternalFailure
	}
	refreshToken, err := e.tokens.IssueRefresh(account.ID, account.ProfileID(), string(account.Role))
	if err != nil {
		log.Print("shelfauth: refresh token signing failed: ", err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, account.Email, ErrInternalFailure, nil)
		return nil, ErrInternalFailure
	}

	// Best effort: a bookkeeping failure must not cost the caller its
	// freshly issued tokens.
	if err := e.accounts.UpdateLastLogin(ctx, account.ID, time.Now()); err != nil {
		log.Print("shelfauth: last-login update failed: ", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, account.Email, nil, func() map[string]string {
		return map[string]string{
			"role": string(account.Role),
		}
	})
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
