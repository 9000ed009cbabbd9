package shelfauth

import (
	"context"
	"log"
)

// RefreshAccessToken exchanges a refresh token for a fresh access token
// carrying the same claims. Whether the presented token was malformed or
// merely expired is deliberately not distinguishable from the returned
// error.
func (e *Engine) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshTokenRequired, nil)
		return "", ErrRefreshTokenRequired
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshTokenInvalid, nil)
		return "", ErrRefreshTokenInvalid
	}
	if claims.UserID == "" {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshClaimsInvalid, nil)
		return "", ErrRefreshClaimsInvalid
	}

	accessToken, err := e.tokens.IssueAccess(claims.UserID, claims.ProfileID, claims.Role)
	if err != nil {
		log.Print("shelfauth: access token signing failed: ", err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UserID, "", ErrInternalFailure, nil)
		return "", ErrInternalFailure
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.UserID, "", nil, nil)
	return accessToken, nil
}
