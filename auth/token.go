// Package auth validates the tokens minted by the external credential
// issuer and resolves the authenticated identity. The core never sees
// an unresolved connection.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chatlink/domain"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// Tokens signs and validates HS256 identity tokens. The secret comes
// from configuration; issuance itself belongs to the external
// authenticator, Generate exists for the client binary and tests.
type Tokens struct {
	key      []byte
	duration time.Duration
}

func NewTokens(secret string, duration time.Duration) Tokens {
	return Tokens{key: []byte(secret), duration: duration}
}

// Generate creates a signed JWT for a specific identity.
func (t Tokens) Generate(identity domain.Identity) (string, error) {
	claims := &CustomClaims{
		Identity: string(identity),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chatlink",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

// Validate parses the token, checks signature and expiration, and
// returns the identity it carries.
func (t Tokens) Validate(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid && claims.Identity != "" {
		return domain.Identity(claims.Identity), nil
	}
	return "", jwt.ErrSignatureInvalid
}
