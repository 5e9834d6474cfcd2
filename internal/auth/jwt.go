// Package auth mints and verifies the bearer tokens that guard the credential
// proxy endpoints.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultIssuer = "nova-canvas"

var ErrMissingSecret = errors.New("missing token secret")

type Claims struct {
	Operator string `json:"op"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

func NewTokenConfig(secret string, expiry time.Duration) TokenConfig {
	return TokenConfig{Secret: secret, Expiry: expiry, Issuer: DefaultIssuer}
}

// Enabled reports whether tokens are required at all.
func (c TokenConfig) Enabled() bool { return c.Secret != "" }

func CreateToken(operator string, cfg TokenConfig) (string, error) {
	return createToken(operator, cfg, time.Now())
}

func createToken(operator string, cfg TokenConfig, now time.Time) (string, error) {
	if cfg.Secret == "" {
		return "", ErrMissingSecret
	}
	if operator == "" {
		return "", errors.New("missing operator")
	}
	if cfg.Expiry <= 0 {
		return "", errors.New("invalid expiry")
	}

	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

func VerifyToken(tokenString string, cfg TokenConfig) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Operator == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
