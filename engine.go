package shelfauth

import (
	"time"

	"github.com/shahriar-hub/shelfauth/password"
	"github.com/shahriar-hub/shelfauth/token"
)

// Engine orchestrates the account-provisioning and authentication
// workflow across the durable stores. Build one through [New]; a zero
// Engine is not usable.
//
// Every operation is stateless between calls. All shared state lives in
// the stores, so one Engine value can serve concurrent requests.
type Engine struct {
	config        Config
	accounts      AccountStore
	registrations RegistrationStore
	verifications VerificationStore
	uow           UnitOfWork
	resendLimiter *resendLimiter
	audit         *auditDispatcher
	metrics       *Metrics
	passwordHash  *password.Bcrypt
	tokens        *token.Manager
	otpSender     OTPSender
}

// Close drains and stops the audit dispatcher. Safe on a nil Engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeLoginLatency(start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricLoginLatency, time.Since(start))
}

func (e *Engine) ready() bool {
	return e != nil &&
		e.accounts != nil &&
		e.registrations != nil &&
		e.verifications != nil &&
		e.uow != nil &&
		e.passwordHash != nil &&
		e.tokens != nil
}
