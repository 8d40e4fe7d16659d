package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a key is absent or already expired.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrBackendUnavailable wraps transport failures of the distributed backend.
	ErrBackendUnavailable = errors.New("kvstore: backend unavailable")
)

// Store is the minimal ephemeral key/value surface needed by the
// challenge store and the verification limiter. All keys carry an
// absolute TTL; there is no persistence contract.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	// Incr increments a counter key, arming the window TTL on the first
	// hit only (fixed-window semantics).
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Count reads a counter key without mutating it. Missing keys read
	// as zero.
	Count(ctx context.Context, key string) (int64, error)
}

// Redis adapts a go-redis client to [Store]. Every call is bounded by
// callTimeout so a backend outage degrades instead of hanging requests.
type Redis struct {
	client      redis.UniversalClient
	callTimeout time.Duration
}

// NewRedis wraps client. A nil client yields an unconfigured adapter
// (Configured reports false and every call fails fast).
func NewRedis(client redis.UniversalClient, callTimeout time.Duration) *Redis {
	if callTimeout <= 0 {
		callTimeout = 500 * time.Millisecond
	}
	return &Redis{
		client:      client,
		callTimeout: callTimeout,
	}
}

// Configured reports whether a distributed client was supplied.
func (r *Redis) Configured() bool {
	return r != nil && r.client != nil
}

func (r *Redis) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.callTimeout)
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if !r.Configured() {
		return nil, ErrBackendUnavailable
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.Configured() {
		return ErrBackendUnavailable
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	if !r.Configured() {
		return false, ErrBackendUnavailable
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()

	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

func (r *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !r.Configured() {
		return 0, ErrBackendUnavailable
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	return count, nil
}

func (r *Redis) Count(ctx context.Context, key string) (int64, error) {
	if !r.Configured() {
		return 0, ErrBackendUnavailable
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()

	count, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

type localEntry struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

// Local is the process-local fallback map. Entries carry absolute
// expiries and are swept opportunistically on writes. Not shared across
// process instances; see the fallback notes on [Fallback].
type Local struct {
	mu      sync.Mutex
	entries map[string]localEntry
	ops     int
	now     func() time.Time
}

const localSweepEvery = 256

// NewLocal constructs an empty local store. It is built once per engine
// and lives for the process lifetime.
func NewLocal() *Local {
	return &Local{
		entries: make(map[string]localEntry),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (l *Local) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || l.now().After(entry.expiresAt) {
		delete(l.entries, key)
		return nil, ErrNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (l *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	l.entries[key] = localEntry{
		value:     stored,
		expiresAt: l.now().Add(ttl),
	}
	l.sweepLocked()
	return nil
}

func (l *Local) Delete(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return false, nil
	}
	delete(l.entries, key)
	return !l.now().After(entry.expiresAt), nil
}

func (l *Local) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok || now.After(entry.expiresAt) {
		entry = localEntry{expiresAt: now.Add(window)}
	}
	entry.count++
	l.entries[key] = entry
	l.sweepLocked()
	return entry.count, nil
}

func (l *Local) Count(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || l.now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

// sweepLocked drops expired entries every localSweepEvery mutations so
// the map does not grow unbounded between restarts.
func (l *Local) sweepLocked() {
	l.ops++
	if l.ops < localSweepEvery {
		return
	}
	l.ops = 0

	now := l.now()
	for key, entry := range l.entries {
		if now.After(entry.expiresAt) {
			delete(l.entries, key)
		}
	}
}

// Len reports the number of live entries. Test hook.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Fallback selects the distributed backend on every single call and
// degrades to the local map when the backend is unconfigured or a call
// fails. The choice is never cached: a transient outage downgrades only
// the calls it touches. The two backends are not synchronized with each
// other; state written locally during an outage is invisible to other
// instances.
type Fallback struct {
	redis  *Redis
	local  *Local
	onMiss func(op string, err error)
}

// NewFallback composes the two backends. onMiss is invoked whenever a
// distributed call fails and the local path takes over; it must not
// block.
func NewFallback(redis *Redis, local *Local, onMiss func(op string, err error)) *Fallback {
	if local == nil {
		local = NewLocal()
	}
	if onMiss == nil {
		onMiss = func(string, error) {}
	}
	return &Fallback{
		redis:  redis,
		local:  local,
		onMiss: onMiss,
	}
}

// Configured reports whether the distributed backend is present.
func (f *Fallback) Configured() bool {
	return f.redis.Configured()
}

func (f *Fallback) Get(ctx context.Context, key string) ([]byte, error) {
	if f.redis.Configured() {
		data, err := f.redis.Get(ctx, key)
		if err == nil || errors.Is(err, ErrNotFound) {
			return data, err
		}
		f.onMiss("get", err)
	}
	return f.local.Get(ctx, key)
}

func (f *Fallback) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.redis.Configured() {
		err := f.redis.Set(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		f.onMiss("set", err)
	}
	return f.local.Set(ctx, key, value, ttl)
}

func (f *Fallback) Delete(ctx context.Context, key string) (bool, error) {
	if f.redis.Configured() {
		deleted, err := f.redis.Delete(ctx, key)
		if err == nil {
			return deleted, nil
		}
		f.onMiss("delete", err)
	}
	return f.local.Delete(ctx, key)
}

func (f *Fallback) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if f.redis.Configured() {
		count, err := f.redis.Incr(ctx, key, window)
		if err == nil {
			return count, nil
		}
		f.onMiss("incr", err)
	}
	return f.local.Incr(ctx, key, window)
}

func (f *Fallback) Count(ctx context.Context, key string) (int64, error) {
	if f.redis.Configured() {
		count, err := f.redis.Count(ctx, key)
		if err == nil {
			return count, nil
		}
		f.onMiss("count", err)
	}
	return f.local.Count(ctx, key)
}
