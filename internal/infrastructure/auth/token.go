// Package auth issues and validates the bridge's own API tokens. The
// smart-home host holds the long-lived shared secret and exchanges it for
// short-lived HS256 tokens instead of sending the secret on every request.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenExpiry = 3600 // seconds

type TokenIssuer struct {
	secret []byte
	issuer string
	expiry int64
}

type apiClaims struct {
	jwt.RegisteredClaims
	Client string `json:"client,omitempty"`
}

func NewTokenIssuer(secret, issuer string, expirySeconds int64) *TokenIssuer {
	if expirySeconds <= 0 {
		expirySeconds = DefaultTokenExpiry
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expirySeconds,
	}
}

// Issue signs an API token for the named client.
func (t *TokenIssuer) Issue(client string) (token string, expiresIn int64, err error) {
	now := time.Now()
	claims := apiClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   client,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(t.expiry) * time.Second)),
		},
		Client: client,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, t.expiry, nil
}

// Validate parses a token and returns the client name it was issued to.
func (t *TokenIssuer) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &apiClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*apiClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	return claims.Client, nil
}
