package mocks

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

// NewTestLogger returns a logger that writes nowhere.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// GenerateTestKeys returns a fresh RSA key pair for signing test tokens.
func GenerateTestKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

// CreateTestToken signs an RS256 token for actor that expires after ttl.
// A negative ttl yields an expired token.
func CreateTestToken(t *testing.T, key *rsa.PrivateKey, actor domain.Actor, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  actor.Subject,
		"role": string(actor.Role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}
