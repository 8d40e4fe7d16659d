package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT      JWTConfig
	Login    LoginConfig
	Pin      PinConfig
	Session  SessionConfig
	Password PasswordConfig
	Store    StoreConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by authcore APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig tunes the credential verifier and its in-memory attempt
// limiter. The limiter is deliberately per-process; see the sliding
// window notes on loginAttemptLimiter.
type LoginConfig struct {
	MaxAttempts       int
	Window            time.Duration
	BlockDuration     time.Duration
	MinPasswordLength int
}

/*
====================================
PIN CONFIG
====================================
*/

// PinConfig defines a public type used by authcore APIs.
//
// PinConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PinConfig struct {
	Digits            int
	TTL               time.Duration
	MaxAttempts       int
	VerifyWindow      time.Duration
	VerifyMaxAttempts int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authcore APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	AbsoluteLifetime  time.Duration
	LivenessThreshold time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig tunes the dual-backend ephemeral store. CallTimeout bounds
// every distributed call so an outage degrades to the local fallback
// instead of hanging the request.
type StoreConfig struct {
	KeyPrefix   string
	CallTimeout time.Duration
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "ed25519",
			Issuer:        "authcore",
		},
		Login: LoginConfig{
			MaxAttempts:       5,
			Window:            15 * time.Minute,
			BlockDuration:     30 * time.Minute,
			MinPasswordLength: 8,
		},
		Pin: PinConfig{
			Digits:            6,
			TTL:               120 * time.Second,
			MaxAttempts:       3,
			VerifyWindow:      60 * time.Second,
			VerifyMaxAttempts: 5,
		},
		Session: SessionConfig{
			AbsoluteLifetime:  24 * time.Hour,
			LivenessThreshold: 30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Store: StoreConfig{
			KeyPrefix:   "lf",
			CallTimeout: 500 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the engine defaults documented in the field
// comments above. Callers adjust the returned value before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}

	// Login
	if c.Login.MaxAttempts <= 0 {
		return errors.New("Login MaxAttempts must be > 0")
	}
	if c.Login.Window <= 0 {
		return errors.New("Login Window must be > 0")
	}
	if c.Login.BlockDuration <= 0 {
		return errors.New("Login BlockDuration must be > 0")
	}
	if c.Login.MinPasswordLength < 8 {
		return errors.New("Login MinPasswordLength must be >= 8")
	}

	// Pin
	if c.Pin.Digits < 4 || c.Pin.Digits > 10 {
		return errors.New("Pin Digits must be between 4 and 10")
	}
	if c.Pin.TTL <= 0 {
		return errors.New("Pin TTL must be > 0")
	}
	if c.Pin.TTL > 10*time.Minute {
		return errors.New("Pin TTL must be <= 10m")
	}
	if c.Pin.MaxAttempts <= 0 {
		return errors.New("Pin MaxAttempts must be > 0")
	}
	if c.Pin.VerifyWindow <= 0 {
		return errors.New("Pin VerifyWindow must be > 0")
	}
	if c.Pin.VerifyMaxAttempts <= 0 {
		return errors.New("Pin VerifyMaxAttempts must be > 0")
	}

	// Session
	if c.Session.AbsoluteLifetime <= 0 {
		return errors.New("Session AbsoluteLifetime must be > 0")
	}
	if c.Session.AbsoluteLifetime > 7*24*time.Hour {
		return errors.New("Session AbsoluteLifetime must be <= 168h")
	}
	if c.Session.LivenessThreshold <= 0 {
		return errors.New("Session LivenessThreshold must be > 0")
	}
	if c.Session.LivenessThreshold >= c.Session.AbsoluteLifetime {
		return errors.New("Session LivenessThreshold must be < AbsoluteLifetime")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Store
	if c.Store.KeyPrefix == "" {
		return errors.New("Store KeyPrefix must not be empty")
	}
	if c.Store.CallTimeout <= 0 {
		return errors.New("Store CallTimeout must be > 0")
	}
	if c.Store.CallTimeout > 5*time.Second {
		return errors.New("Store CallTimeout must be <= 5s")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
