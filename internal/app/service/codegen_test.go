package service

import (
	"strings"
	"testing"
)

func TestGenerateCode_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{1, 7, 12} {
		code, err := GenerateCode(length)
		if err != nil {
			t.Fatalf("GenerateCode(%d) returned error: %v", length, err)
		}
		if len(code) != length {
			t.Fatalf("GenerateCode(%d) returned %q (len %d)", length, code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}

func TestGenerateCode_DefaultsLength(t *testing.T) {
	code, err := GenerateCode(0)
	if err != nil {
		t.Fatalf("GenerateCode(0) returned error: %v", err)
	}
	if len(code) != DefaultCodeLength {
		t.Fatalf("expected default length %d, got %q", DefaultCodeLength, code)
	}
}

func TestGenerateCode_Varies(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode(7)
		if err != nil {
			t.Fatalf("GenerateCode returned error: %v", err)
		}
		seen[code] = true
	}
	// 50 draws from 62^7 colliding down to a handful would mean the
	// generator is broken, not unlucky.
	if len(seen) < 45 {
		t.Fatalf("expected near-unique codes, got %d distinct of 50", len(seen))
	}
}
