package domain

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestRandomCode_Alphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := RandomCode()
		if len(code) != CodeLength {
			t.Fatalf("expected length %d, got %q", CodeLength, code)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		if !ValidCode(code) {
			t.Fatalf("generated code %q does not validate", code)
		}
	}
}

func TestNormalizeAndValidCode(t *testing.T) {
	tests := []struct {
		in    string
		norm  string
		valid bool
	}{
		{" abc123 ", "ABC123", true},
		{"MATH", "MATH", true},
		{"abc", "ABC", false},
		{"ABC-12", "ABC-12", false},
		{"ABCDEFGHJKLMN", "ABCDEFGHJKLMN", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeCode(tt.in)
			if got != tt.norm {
				t.Errorf("NormalizeCode(%q) = %q, want %q", tt.in, got, tt.norm)
			}
			if ValidCode(got) != tt.valid {
				t.Errorf("ValidCode(%q) = %v, want %v", got, !tt.valid, tt.valid)
			}
		})
	}
}

func TestFallbackCode_Deterministic(t *testing.T) {
	a := FallbackCode("teacher-1")
	if a != FallbackCode("teacher-1") {
		t.Error("fallback code must be deterministic")
	}
	if len(a) != fallbackCodeLength || !ValidCode(a) {
		t.Errorf("fallback code %q is not a valid %d char code", a, fallbackCodeLength)
	}
	if a == FallbackCode("teacher-2") {
		t.Error("different seeds should give different codes")
	}
}

func TestGenerateCode(t *testing.T) {
	seq := func(codes ...string) func() string {
		i := 0
		return func() string {
			c := codes[i%len(codes)]
			i++
			return c
		}
	}
	taken := func(codes ...string) func(string) (bool, error) {
		set := map[string]bool{}
		for _, c := range codes {
			set[c] = true
		}
		return func(c string) (bool, error) { return set[c], nil }
	}

	t.Run("first free candidate", func(t *testing.T) {
		code, err := GenerateCode(seq("AAAAAA", "BBBBBB"), taken("AAAAAA"), 5, "FALLBACK")
		if err != nil || code != "BBBBBB" {
			t.Errorf("expected BBBBBB, got %q (%v)", code, err)
		}
	})

	t.Run("falls back after attempts", func(t *testing.T) {
		code, err := GenerateCode(seq("AAAAAA"), taken("AAAAAA"), 3, "fallback")
		if err != nil || code != "FALLBACK" {
			t.Errorf("expected FALLBACK, got %q (%v)", code, err)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		_, err := GenerateCode(seq("AAAAAA"), taken("AAAAAA", "FALLBACK"), 3, "FALLBACK")
		if !errors.Is(err, ErrCodeExhausted) {
			t.Errorf("expected ErrCodeExhausted, got %v", err)
		}
	})

	t.Run("lookup error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := GenerateCode(seq("AAAAAA"), func(string) (bool, error) { return false, boom }, 3, "FALLBACK")
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped lookup error, got %v", err)
		}
	})
}
