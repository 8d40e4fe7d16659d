package authcore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lumenfleet/authcore/internal/kvstore"
)

const pinChallengeVersion1 = 1

// pinChallenge is the live handshake record keyed by normalized email.
// One record per email: issuing a new challenge overwrites the previous
// one unconditionally.
type pinChallenge struct {
	Pin       string
	Token     string
	AccountID string
	Attempts  uint16
	ExpiresAt int64
}

// pinChallengeStore persists challenge records through the dual-backend
// store with the challenge TTL. Attempt increments are plain
// read-modify-write: a concurrent burst may lose an increment, which
// only ever grants the caller one extra guess against a 3-attempt cap.
type pinChallengeStore struct {
	store     kvstore.Store
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

func newPinChallengeStore(store kvstore.Store, cfg PinConfig, keyPrefix string) *pinChallengeStore {
	return &pinChallengeStore{
		store:     store,
		keyPrefix: keyPrefix,
		ttl:       cfg.TTL,
		now:       time.Now,
	}
}

func (s *pinChallengeStore) key(email string) string {
	return fmt.Sprintf("%s:pc:%s", s.keyPrefix, email)
}

// Save writes a fresh challenge for email, replacing any live record.
func (s *pinChallengeStore) Save(ctx context.Context, email string, record *pinChallenge) error {
	encoded, err := encodePinChallenge(record)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.key(email), encoded, s.ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}
	return nil
}

// Get loads the live challenge for email. Expired records are deleted
// on read and reported as [ErrPinExpired]; absence is also
// [ErrPinExpired]: the caller cannot distinguish "never issued" from
// "timed out", which is deliberate.
func (s *pinChallengeStore) Get(ctx context.Context, email string) (*pinChallenge, error) {
	data, err := s.store.Get(ctx, s.key(email))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrPinExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}

	record, err := decodePinChallenge(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}
	if s.now().Unix() > record.ExpiresAt {
		_, _ = s.store.Delete(ctx, s.key(email))
		return nil, ErrPinExpired
	}
	return record, nil
}

// Delete removes the challenge for email.
func (s *pinChallengeStore) Delete(ctx context.Context, email string) error {
	if _, err := s.store.Delete(ctx, s.key(email)); err != nil {
		return fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}
	return nil
}

// RecordFailure increments the per-challenge attempt counter, preserving
// the remaining TTL, and reports whether the cap was reached. When the
// cap is reached the record is deleted.
func (s *pinChallengeStore) RecordFailure(ctx context.Context, email string, record *pinChallenge, maxAttempts int) (bool, error) {
	record.Attempts++
	if int(record.Attempts) >= maxAttempts {
		if err := s.Delete(ctx, email); err != nil {
			return true, err
		}
		return true, nil
	}

	remaining := time.Until(time.Unix(record.ExpiresAt, 0))
	if remaining <= 0 {
		_, _ = s.store.Delete(ctx, s.key(email))
		return false, ErrPinExpired
	}

	encoded, err := encodePinChallenge(record)
	if err != nil {
		return false, err
	}
	if err := s.store.Set(ctx, s.key(email), encoded, remaining); err != nil {
		return false, fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}
	return false, nil
}

func encodePinChallenge(record *pinChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(pinChallengeVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.Pin, record.Token, record.AccountID} {
		if len(field) > 65535 {
			return nil, errors.New("pin challenge field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodePinChallenge(data []byte) (*pinChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != pinChallengeVersion1 {
		return nil, errors.New("invalid pin challenge version")
	}

	record := &pinChallenge{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	for _, field := range []*string{&record.Pin, &record.Token, &record.AccountID} {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		value := make([]byte, length)
		if _, err := io.ReadFull(reader, value); err != nil {
			return nil, err
		}
		*field = string(value)
	}

	return record, nil
}
