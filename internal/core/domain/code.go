package domain

import (
	"crypto/rand"
	"hash/fnv"
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	CodeLength         = 6
	fallbackCodeLength = 8

	// No 0/O or 1/I so codes survive being read aloud or copied by hand.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NormalizeCode is applied to every teacher code on write and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is an already normalized teacher code.
func ValidCode(code string) bool {
	if len(code) < 4 || len(code) > 12 {
		return false
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// RandomCode draws a CodeLength candidate from codeAlphabet.
func RandomCode() string {
	var b strings.Builder
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String()
}

// FallbackCode derives a deterministic code from seed (usually the teacher ID).
func FallbackCode(seed string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	code := strings.ToUpper(strconv.FormatUint(h.Sum64(), 36))
	if len(code) > fallbackCodeLength {
		code = code[:fallbackCodeLength]
	}
	for len(code) < fallbackCodeLength {
		code = "0" + code
	}
	return code
}

// GenerateCode tries up to attempts candidates from next, then the fallback,
// returning the first one exists reports as free.
func GenerateCode(next func() string, exists func(string) (bool, error), attempts int, fallback string) (string, error) {
	for i := 0; i < attempts; i++ {
		candidate := NormalizeCode(next())
		taken, err := exists(candidate)
		if err != nil {
			return "", errors.Wrap(err, "check teacher code")
		}
		if !taken {
			return candidate, nil
		}
	}

	fallback = NormalizeCode(fallback)
	taken, err := exists(fallback)
	if err != nil {
		return "", errors.Wrap(err, "check fallback teacher code")
	}
	if taken {
		return "", ErrCodeExhausted
	}
	return fallback, nil
}
