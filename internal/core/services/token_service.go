package services

import (
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

const DefaultSessionTokenTTL = 12 * time.Hour

// TokenService signs the bearer tokens this service hands out itself, which
// are parent session tokens. Teacher and admin tokens come from the identity
// provider and are verified with the same public key.
type TokenService struct {
	privateKey *rsa.PrivateKey
	ttl        time.Duration
	now        func() time.Time
}

var _ ports.TokenIssuer = (*TokenService)(nil)

func NewTokenService(privateKey *rsa.PrivateKey, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultSessionTokenTTL
	}
	return &TokenService{privateKey: privateKey, ttl: ttl, now: time.Now}
}

func (s *TokenService) IssueToken(actor domain.Actor) (string, error) {
	if actor.Subject == "" || actor.Role == "" {
		return "", errors.WithMessage(domain.ErrInvalidInput, "token needs a subject and a role")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  actor.Subject,
		"role": string(actor.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}
