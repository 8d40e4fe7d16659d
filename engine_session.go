package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssueSession mints a session token for account after a completed
// two-step login. The token carries the account id, role, absolute
// expiry, and a liveness timestamp; its id is recorded nowhere. Only
// invalidation writes to the stale set.
func (e *Engine) IssueSession(ctx context.Context, account *AccountInfo) (*SessionResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if account == nil || account.AccountID == "" {
		return nil, ErrValidation
	}

	now := e.now()
	tokenID := uuid.NewString()

	token, err := e.jwtManager.CreateSession(account.AccountID, string(account.Role), tokenID, now)
	if err != nil {
		return nil, fmt.Errorf("session issuance failed: %w", err)
	}

	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, "session.issued", account.AccountID, true, "", nil)

	return &SessionResult{
		Token:     token,
		ExpiresAt: now.Add(e.config.Session.AbsoluteLifetime),
	}, nil
}

// ValidateSession authenticates a request-bearing token and walks the
// session state machine:
//
//   - within the liveness threshold of the stamped check, the token is
//     trusted as-is and refreshedToken is empty;
//   - past the threshold, the stale set and the account active flag are
//     consulted: a stale or disabled session is permanently invalid,
//     while a live one is re-signed with a fresh liveness stamp and the
//     replacement token is returned for cookie rotation.
//
// The absolute expiry embedded at issuance is never extended. All
// failures collapse to [ErrSessionInvalid]; callers learn only
// authenticated / not authenticated.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*AuthResult, string, error) {
	if e == nil {
		return nil, "", ErrEngineNotReady
	}

	start := e.now()
	defer func() {
		e.metricObserve(MetricValidateLatency, e.now().Sub(start))
	}()

	claims, err := e.jwtManager.ParseSession(token)
	if err != nil {
		return nil, "", ErrSessionInvalid
	}

	now := e.now()
	result := &AuthResult{
		AccountID:  claims.UID,
		Role:       Role(claims.Role),
		IssuedAt:   claims.IssuedAt.Time,
		ExpiresAt:  claims.ExpiresAt.Time,
		LivenessAt: time.Unix(claims.LivenessAt, 0),
	}

	if now.Sub(result.LivenessAt) < e.config.Session.LivenessThreshold {
		return result, "", nil
	}

	stale, err := e.sessions.IsStale(ctx, claims.ID)
	if err != nil {
		// The stale set rides the fallback store; an error here means
		// even the local path failed. Fail closed.
		return nil, "", ErrSessionInvalid
	}
	if stale {
		e.metricInc(MetricSessionStale)
		return nil, "", ErrSessionInvalid
	}

	active, err := e.accounts.GetAccountActive(ctx, claims.UID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		// Transient provider failure: fail closed for this request but
		// leave the stale set alone. A healthy session must survive a
		// backend outage; only a missing or disabled account earns the
		// one-way stale transition.
		return nil, "", ErrSessionInvalid
	}
	if err != nil || !active {
		e.markStale(ctx, claims.ID, result.ExpiresAt)
		e.metricInc(MetricSessionStale)
		e.emitAudit(ctx, "session.stale", claims.UID, false, ErrSessionInvalid.Error(), nil)
		return nil, "", ErrSessionInvalid
	}

	refreshed, err := e.jwtManager.Restamp(claims, now)
	if err != nil {
		return nil, "", ErrSessionInvalid
	}

	result.LivenessAt = now
	return result, refreshed, nil
}

// InvalidateSession marks the token's session stale for its remaining
// lifetime. Used by logout; the transition is one-way.
func (e *Engine) InvalidateSession(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseSession(token)
	if err != nil {
		// An unparseable or already-expired token needs no marking.
		return nil
	}

	e.markStale(ctx, claims.ID, claims.ExpiresAt.Time)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, "session.invalidated", claims.UID, true, "", nil)
	return nil
}

func (e *Engine) markStale(ctx context.Context, tokenID string, expiresAt time.Time) {
	remaining := expiresAt.Sub(e.now())
	if err := e.sessions.Mark(ctx, tokenID, remaining); err != nil {
		e.logger.Warn("failed to mark session stale",
			zap.String("token_id", tokenID),
			zap.Error(err),
		)
	}
}
