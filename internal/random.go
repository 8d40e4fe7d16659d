package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const challengeTokenSize = 32

// NewChallengeToken returns a base64url-encoded random token carrying
// challengeTokenSize bytes of entropy. It binds a PIN challenge to the
// handshake that created it; it is not a login session credential.
func NewChallengeToken() (string, error) {
	var raw [challengeTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewPin returns a numeric PIN of the given length, uniform over the full
// digit space including leading zeros.
func NewPin(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid pin digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	pin := b.String()
	if len(pin) != digits {
		return "", fmt.Errorf("invalid pin generation length")
	}
	return pin, nil
}
