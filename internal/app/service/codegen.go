package service

import (
	"crypto/rand"
	"math/big"
)

// codeAlphabet is the base62 character set used for generated codes.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DefaultCodeLength keeps collision probability negligible at real traffic
// volumes (62^7 is roughly 3.5e12).
const DefaultCodeLength = 7

// GenerateCode produces a random short code of the given length from the
// base62 alphabet using a cryptographically secure source.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
