// Package statetoken mints and validates the signed state that rides along
// the widget round-trip, binding an outcome back to the session it belongs to.
package statetoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "verify-gateway/pkg/domain-errors"
)

// Claims are the state token claims for one verification session.
type Claims struct {
	SessionID   string `json:"session_id"`
	Action      string `json:"action"`
	Environment string `json:"environment"`
	jwt.RegisteredClaims
}

// Service handles state token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewService(signingKey string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     "verify-gateway",
		ttl:        ttl,
	}
}

// Mint signs a state token for the given session.
func (s *Service) Mint(sessionID uuid.UUID, action, environment string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID:   sessionID.String(),
		Action:      action,
		Environment: environment,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Validate parses a state token and returns its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "state token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid state token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid state token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid state token")
	}
	return claims, nil
}
