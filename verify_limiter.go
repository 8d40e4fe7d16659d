package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenfleet/authcore/internal/kvstore"
)

// verifyLimiter caps PIN verification calls per normalized email over a
// fixed window. It rides the dual-backend store so the cap holds across
// instances while redis is healthy and degrades to per-instance
// counting during an outage. Counts are best-effort: concurrent bursts
// on the local fallback may lose increments, which only ever
// under-counts.
type verifyLimiter struct {
	store       kvstore.Store
	keyPrefix   string
	maxAttempts int
	window      time.Duration
}

func newVerifyLimiter(store kvstore.Store, cfg PinConfig, keyPrefix string) *verifyLimiter {
	return &verifyLimiter{
		store:       store,
		keyPrefix:   keyPrefix,
		maxAttempts: cfg.VerifyMaxAttempts,
		window:      cfg.VerifyWindow,
	}
}

func (v *verifyLimiter) key(email string) string {
	return fmt.Sprintf("%s:pv:%s", v.keyPrefix, email)
}

// Allowed reports whether email has verification budget left in the
// current window. It does not consume budget.
func (v *verifyLimiter) Allowed(ctx context.Context, email string) (bool, error) {
	count, err := v.store.Count(ctx, v.key(email))
	if err != nil {
		return false, err
	}
	return count < int64(v.maxAttempts), nil
}

// Record consumes one unit of verification budget, starting a fresh
// window on the first hit.
func (v *verifyLimiter) Record(ctx context.Context, email string) error {
	_, err := v.store.Incr(ctx, v.key(email), v.window)
	return err
}
