package authcore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lumenfleet/authcore/password"
)

const testAccountPassword = "correct-horse-staple"

func testConfig(t *testing.T) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	// Weak-but-valid argon2 parameters keep the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testProvider struct {
	mu        sync.RWMutex
	byEmail   map[string]AccountRecord
	lookupErr error
	activeErr error
}

func newTestProvider() *testProvider {
	return &testProvider{
		byEmail: make(map[string]AccountRecord),
	}
}

func (p *testProvider) Put(record AccountRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byEmail[record.Email] = record
}

func (p *testProvider) SetActive(accountID string, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for email, record := range p.byEmail {
		if record.AccountID == accountID {
			record.Active = active
			p.byEmail[email] = record
		}
	}
}

func (p *testProvider) FailLookups(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookupErr = err
}

func (p *testProvider) FailActiveChecks(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeErr = err
}

func (p *testProvider) GetAccountByEmail(_ context.Context, email string) (AccountRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.lookupErr != nil {
		return AccountRecord{}, p.lookupErr
	}
	record, ok := p.byEmail[email]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return record, nil
}

func (p *testProvider) GetAccountActive(_ context.Context, accountID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.activeErr != nil {
		return false, p.activeErr
	}
	for _, record := range p.byEmail {
		if record.AccountID == accountID {
			return record.Active, nil
		}
	}
	return false, ErrAccountNotFound
}

func seedAccount(t *testing.T, cfg Config, provider *testProvider, email string, active bool) AccountRecord {
	t.Helper()

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("argon2 init failed: %v", err)
	}
	hash, err := hasher.Hash(testAccountPassword)
	if err != nil {
		t.Fatalf("argon2 hash failed: %v", err)
	}

	record := AccountRecord{
		AccountID:    "acct-" + email,
		Email:        email,
		Name:         "Test Operator",
		PasswordHash: hash,
		Role:         RoleElevated,
		Active:       active,
	}
	provider.Put(record)
	return record
}

// newTestEngine builds an engine over miniredis. The returned cleanup
// closes the engine and both redis handles.
func newTestEngine(t *testing.T, cfg Config, provider AccountProvider) (*Engine, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(provider).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("engine build failed: %v", err)
	}

	return engine, mr, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// advanceEngine moves the engine-side clocks forward by delta and
// fast-forwards miniredis TTLs to match.
func advanceEngine(engine *Engine, mr *miniredis.Miniredis, delta time.Duration) {
	base := engine.now()
	shifted := base.Add(delta)
	engine.now = func() time.Time { return shifted }
	engine.pinStore.now = engine.now
	engine.loginLimiter.now = engine.now
	mr.FastForward(delta)
}
