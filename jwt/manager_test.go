package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519 keygen failed: %v", err)
	}

	manager, err := NewManager(Config{
		SessionTTL:    ttl,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authcore-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return manager
}

func TestCreateAndParseSession(t *testing.T) {
	manager := newTestManager(t, time.Hour)
	now := time.Now()

	token, err := manager.CreateSession("acct-1", "standard", "tok-1", now)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	claims, err := manager.ParseSession(token)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
	if claims.UID != "acct-1" || claims.Role != "standard" || claims.ID != "tok-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.LivenessAt != now.Unix() {
		t.Fatalf("expected liveness stamp %d, got %d", now.Unix(), claims.LivenessAt)
	}
	if got := claims.ExpiresAt.Time.Unix(); got != now.Add(time.Hour).Unix() {
		t.Fatalf("unexpected expiry: %d", got)
	}
}

func TestRestampPreservesLifetime(t *testing.T) {
	manager := newTestManager(t, time.Hour)
	now := time.Now()

	token, err := manager.CreateSession("acct-1", "standard", "tok-1", now)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	claims, err := manager.ParseSession(token)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}

	later := now.Add(5 * time.Minute)
	restamped, err := manager.Restamp(claims, later)
	if err != nil {
		t.Fatalf("Restamp failed: %v", err)
	}

	updated, err := manager.ParseSession(restamped)
	if err != nil {
		t.Fatalf("ParseSession(restamped) failed: %v", err)
	}
	if updated.LivenessAt != later.Unix() {
		t.Fatalf("expected refreshed liveness %d, got %d", later.Unix(), updated.LivenessAt)
	}
	if updated.ID != claims.ID {
		t.Fatal("restamp must not change the token id")
	}
	if !updated.ExpiresAt.Time.Equal(claims.ExpiresAt.Time) {
		t.Fatal("restamp must not extend the absolute expiry")
	}
	if !updated.IssuedAt.Time.Equal(claims.IssuedAt.Time) {
		t.Fatal("restamp must not change issued-at")
	}
}

func TestParseRejectsExpiredSession(t *testing.T) {
	manager := newTestManager(t, time.Minute)

	token, err := manager.CreateSession("acct-1", "standard", "tok-1", time.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := manager.ParseSession(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsForeignKey(t *testing.T) {
	manager := newTestManager(t, time.Hour)
	other := newTestManager(t, time.Hour)

	token, err := other.CreateSession("acct-1", "standard", "tok-1", time.Now())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := manager.ParseSession(token); err == nil {
		t.Fatal("expected token signed by foreign key to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519 keygen failed: %v", err)
	}

	if _, err := NewManager(Config{SessionTTL: 0, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub}); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
	if _, err := NewManager(Config{SessionTTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: priv}); err == nil {
		t.Fatal("expected missing public key to be rejected")
	}
	if _, err := NewManager(Config{SessionTTL: time.Hour, SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected missing hs256 secret to be rejected")
	}
	if _, err := NewManager(Config{SessionTTL: time.Hour, SigningMethod: "none"}); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}
}
