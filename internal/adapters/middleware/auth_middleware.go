package middleware

import (
	"context"
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type AuthMiddleware struct {
	publicKey *rsa.PublicKey
	logger    *logrus.Logger
}

func NewAuthMiddleware(publicKey *rsa.PublicKey, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{publicKey: publicKey, logger: logger}
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor stores the authenticated actor on ctx.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the actor RequireRole stored on the request context.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// ParseToken verifies an RS256 token and extracts the actor from its sub and
// role claims.
func (m *AuthMiddleware) ParseToken(tokenString string) (domain.Actor, error) {
	if tokenString == "" {
		return domain.Actor{}, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.WithMessage(ErrInvalidToken, errString(err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, errors.WithMessage(ErrInvalidToken, "unexpected claims type")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.Actor{}, errors.WithMessage(ErrInvalidToken, "missing sub claim")
	}
	role, _ := claims["role"].(string)
	switch domain.Role(role) {
	case domain.RoleAdmin, domain.RoleTeacher, domain.RoleParent:
	default:
		return domain.Actor{}, errors.WithMessagef(ErrInvalidToken, "unknown role %q", role)
	}
	return domain.Actor{Subject: sub, Role: domain.Role(role)}, nil
}

func errString(err error) string {
	if err == nil {
		return "token not valid"
	}
	return err.Error()
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (m *AuthMiddleware) RequireRole(roles []domain.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := m.ParseToken(BearerToken(r))
		if err != nil {
			m.logger.WithError(err).WithField("path", r.URL.Path).Debug("request rejected")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		allowed := false
		for _, role := range roles {
			if actor.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			m.logger.WithFields(logrus.Fields{
				"path":     r.URL.Path,
				"role":     actor.Role,
				"required": roles,
			}).Debug("role mismatch")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		next(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}
