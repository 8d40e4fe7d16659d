package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumenfleet/authcore/internal/kvstore"
	"github.com/lumenfleet/authcore/jwt"
	"github.com/lumenfleet/authcore/password"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config        Config
	accounts      AccountProvider
	loginLimiter  *loginAttemptLimiter
	verifyLimiter *verifyLimiter
	pinStore      *pinChallengeStore
	sessions      *staleSessionStore
	jwtManager    *jwt.Manager
	passwordHash  *password.Argon2
	dummyHash     string
	audit         *auditDispatcher
	metrics       *Metrics
	logger        *zap.Logger

	now func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
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

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) emitAudit(ctx context.Context, eventType, accountID string, success bool, errMsg string, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     errMsg,
		Metadata:  metadata,
	})
}

// normalizeEmail lowercases and trims; all limiter and challenge keys
// derive from this form so "User@Example.Com " and "user@example.com"
// share one budget.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// staleSessionStore marks token ids whose sessions were invalidated
// before their absolute expiry. Marking is permanent for the token's
// remaining lifetime; validation consults it only past the liveness
// threshold.
type staleSessionStore struct {
	store     kvstore.Store
	keyPrefix string
}

func newStaleSessionStore(store kvstore.Store, keyPrefix string) *staleSessionStore {
	return &staleSessionStore{
		store:     store,
		keyPrefix: keyPrefix,
	}
}

func (s *staleSessionStore) key(tokenID string) string {
	return s.keyPrefix + ":ss:" + tokenID
}

func (s *staleSessionStore) Mark(ctx context.Context, tokenID string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	return s.store.Set(ctx, s.key(tokenID), []byte{1}, remaining)
}

func (s *staleSessionStore) IsStale(ctx context.Context, tokenID string) (bool, error) {
	if _, err := s.store.Get(ctx, s.key(tokenID)); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
