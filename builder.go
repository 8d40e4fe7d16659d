package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lumenfleet/authcore/internal/kvstore"
	"github.com/lumenfleet/authcore/jwt"
	"github.com/lumenfleet/authcore/password"
)

// dummyVerifyPassword seeds the hash burned on paths that must not skip
// the argon2 comparison. The value is irrelevant; only the cost is.
const dummyVerifyPassword = "authcore-equalizer-0001"

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  AccountProvider
	auditSink AuditSink
	logger    *zap.Logger

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the distributed backend for challenge records, the
// verification limiter, and the stale-session set. Optional: without it
// the engine runs entirely on the process-local fallback.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountProvider describes the withaccountprovider operation and its observable behavior.
//
// WithAccountProvider may return an error when input validation, dependency calls, or security checks fail.
// WithAccountProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAccountProvider(provider AccountProvider) *Builder {
	b.accounts = provider
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger may return an error when input validation, dependency calls, or security checks fail.
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithAuditEnabled describes the withauditenabled operation and its observable behavior.
//
// WithAuditEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithAuditEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditEnabled(enabled bool) *Builder {
	b.config.Audit.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	// The equalizer hash is burned on every rejection path that skips a
	// real comparison, so backend state never shows through as timing.
	dummyHash, err := hasher.Hash(dummyVerifyPassword)
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		SessionTTL:    cfg.Session.AbsoluteLifetime,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(cfg.Metrics)

	engine := &Engine{
		config:       cfg,
		accounts:     b.accounts,
		loginLimiter: newLoginAttemptLimiter(cfg.Login),
		jwtManager:   jwtManager,
		passwordHash: hasher,
		dummyHash:    dummyHash,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}

	store := kvstore.NewFallback(
		kvstore.NewRedis(b.redis, cfg.Store.CallTimeout),
		kvstore.NewLocal(),
		func(op string, err error) {
			engine.metricInc(MetricStoreFallback)
			logger.Warn("distributed store degraded to local fallback",
				zap.String("op", op),
				zap.Error(err),
			)
		},
	)

	engine.pinStore = newPinChallengeStore(store, cfg.Pin, cfg.Store.KeyPrefix)
	engine.verifyLimiter = newVerifyLimiter(store, cfg.Pin, cfg.Store.KeyPrefix)
	engine.sessions = newStaleSessionStore(store, cfg.Store.KeyPrefix)

	b.built = true
	return engine, nil
}
