package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
)

func signToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenServiceValidate(t *testing.T) {
	svc := NewTokenService("secret", "campus-auth")
	token := signToken(t, "secret", models.JWTClaims{
		Email:            "a@campus.edu",
		FullName:         "Asha",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "campus-auth"},
	})

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a@campus.edu", claims.Email)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestTokenServiceRejects(t *testing.T) {
	svc := NewTokenService("secret", "campus-auth")
	cases := map[string]string{
		"wrong secret": signToken(t, "other", models.JWTClaims{Email: "a@x.edu", RegisteredClaims: jwt.RegisteredClaims{Issuer: "campus-auth"}}),
		"wrong issuer": signToken(t, "secret", models.JWTClaims{Email: "a@x.edu", RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere"}}),
		"expired": signToken(t, "secret", models.JWTClaims{Email: "a@x.edu", RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "campus-auth", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}),
		"no email":     signToken(t, "secret", models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "campus-auth"}}),
		"unknown role": signToken(t, "secret", models.JWTClaims{Email: "a@x.edu", Role: "ROOT", RegisteredClaims: jwt.RegisteredClaims{Issuer: "campus-auth"}}),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
