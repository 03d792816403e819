// Package auth provides bearer-token authentication for the webhook receiver
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims represents the JWT claims for webhook authentication
type Claims struct {
	Source string `json:"source"`
	jwt.RegisteredClaims
}

// TokenConfig holds JWT configuration. The secret is shared with the webhook
// sender, which signs its notification tokens with it.
type TokenConfig struct {
	Issuer      string
	ExpiryHours int
	Secret      []byte
}

// GenerateToken creates a new JWT identifying a webhook source
func GenerateToken(source string, config *TokenConfig) (string, error) {
	now := time.Now()
	claims := Claims{
		Source: source,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.Issuer,
			Subject:   source,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(config.ExpiryHours) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(config.Secret)
}

// ValidateToken verifies a JWT and returns the claims if valid
func ValidateToken(tokenString string, config *TokenConfig) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return config.Secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
