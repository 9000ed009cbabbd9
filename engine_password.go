package shelfauth

import (
	"context"
	"log"
	"time"
)

// ChangePassword rotates an authenticated account's credential. The
// caller proves knowledge of the current password before the new hash is
// written; the write targets a single document, so no transaction is
// involved.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	account, err := e.accounts.FindByID(ctx, userID)
	if err != nil {
		log.Print("shelfauth: account lookup failed: ", err)
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrInternalFailure, nil)
		return ErrInternalFailure
	}
	if account == nil {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrUserNotFound, nil)
		return ErrUserNotFound
	}

	match, err := e.passwordHash.Verify(oldPassword, account.PasswordHash)
	if err != nil {
		log.Print("shelfauth: password verification failed: ", err)
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, account.ID, account.Email, ErrInternalFailure, nil)
		return ErrInternalFailure
	}
	if !match {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, account.ID, account.Email, ErrWrongOldPassword, nil)
		return ErrWrongOldPassword
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		log.Print("shelfauth: password hashing failed: ", err)
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, account.ID, account.Email, ErrPasswordUpdateFailed, nil)
		return ErrPasswordUpdateFailed
	}

	modified, err := e.accounts.UpdatePasswordHash(ctx, account.ID, newHash, time.Now())
	if err != nil {
		log.Print("shelfauth: password update failed: ", err)
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, account.ID, account.Email, ErrPasswordUpdateFailed, nil)
		return ErrPasswordUpdateFailed
	}
	if modified == 0 {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, account.ID, account.Email, ErrPasswordUpdateFailed, nil)
		return ErrPasswordUpdateFailed
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, account.ID, account.Email, nil, nil)
	return nil
}
