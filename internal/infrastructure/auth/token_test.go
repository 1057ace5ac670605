package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	issuer := NewTokenIssuer("topsecret", "vibbobridge", 3600)

	token, expiresIn, err := issuer.Issue("homeassistant")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), expiresIn)

	client, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "homeassistant", client)
}

func TestValidateWrongSecret(t *testing.T) {
	token, _, err := NewTokenIssuer("secret-a", "vibbobridge", 60).Issue("homeassistant")
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b", "vibbobridge", 60).Validate(token)
	assert.Error(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("topsecret", "vibbobridge", 60)
	claims := apiClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "vibbobridge",
			Subject:   "homeassistant",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Client: "homeassistant",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("topsecret"))
	require.NoError(t, err)

	_, err = issuer.Validate(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateRejectsUnsignedToken(t *testing.T) {
	issuer := NewTokenIssuer("topsecret", "vibbobridge", 60)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "homeassistant"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Validate(unsigned)
	assert.Error(t, err)
}

func TestValidateGarbage(t *testing.T) {
	issuer := NewTokenIssuer("topsecret", "vibbobridge", 60)
	_, err := issuer.Validate("not.a.token")
	assert.Error(t, err)
}

func TestExpiryDefault(t *testing.T) {
	issuer := NewTokenIssuer("topsecret", "vibbobridge", 0)
	_, expiresIn, err := issuer.Issue("homeassistant")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultTokenExpiry), expiresIn)
}
