package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("redirect secret is not configured")
)

// TokenSigner issues compact HMAC tokens that bind a short code for a
// limited time. The warning interstitial uses them so its continue-anyway
// link cannot be forged or replayed indefinitely.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner returns a signer with the given secret and token lifetime.
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: secret, ttl: ttl}
}

// Issue mints a token bound to code.
func (s *TokenSigner) Issue(code string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}

	// 4 bytes expiry + 8 random bytes keep the token single-use-ish without
	// server state.
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[:4], uint32(time.Now().Add(s.ttl).Unix()))
	if _, err := rand.Read(payload[4:]); err != nil {
		return "", err
	}

	sig := s.sign(code, payload)
	return fmt.Sprintf("%s.%s",
		base64.RawURLEncoding.EncodeToString(payload),
		base64.RawURLEncoding.EncodeToString(sig[:16])), nil
}

// Validate checks signature integrity and TTL of the token for code.
func (s *TokenSigner) Validate(code, token string) error {
	if len(s.secret) == 0 {
		return ErrMissingSecret
	}

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(payload) < 4 {
		return ErrInvalidToken
	}
	sigProvided, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(sigProvided) != 16 {
		return ErrInvalidToken
	}

	expected := s.sign(code, payload)
	if !hmac.Equal(sigProvided, expected[:16]) {
		return ErrInvalidToken
	}

	expires := binary.BigEndian.Uint32(payload[:4])
	if time.Now().Unix() > int64(expires) {
		return ErrInvalidToken
	}
	return nil
}

func (s *TokenSigner) sign(code string, payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte("continue"))
	mac.Write([]byte("|"))
	mac.Write([]byte(code))
	mac.Write([]byte("|"))
	mac.Write(payload)
	return mac.Sum(nil)
}
