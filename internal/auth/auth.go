// Package auth issues and validates the bearer tokens that guard the
// collector's status endpoint.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer is set on every token this package signs
	Issuer = "flightwx"

	// DefaultTokenDuration is used when Config.TokenDuration is zero
	DefaultTokenDuration = 24 * time.Hour
)

var (
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrMissingSecret is returned when signing without a secret
	ErrMissingSecret = errors.New("token secret not configured")
)

// Claims represents the JWT claims of a status client.
type Claims struct {
	Name  string `json:"name"`
	RunID string `json:"run_id,omitempty"`
	jwt.RegisteredClaims
}

// Config holds token configuration.
type Config struct {
	Secret        string        // HMAC key for signing tokens
	TokenDuration time.Duration // How long tokens are valid
}

// Service signs and validates tokens.
type Service struct {
	config Config
	now    func() time.Time
}

// NewService creates a new token service.
func NewService(cfg Config) *Service {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = DefaultTokenDuration
	}
	return &Service{config: cfg, now: time.Now}
}

// GenerateToken signs a token for subject, optionally bound to a run.
func (s *Service) GenerateToken(subject, runID string) (string, error) {
	if s.config.Secret == "" {
		return "", ErrMissingSecret
	}

	now := s.now()
	claims := &Claims{
		Name:  subject,
		RunID: runID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// ValidateToken validates a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if s.config.Secret == "" {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}
