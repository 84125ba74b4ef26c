// Package jwt parses the identity tokens issued by the external auth
// provider. The engine trusts a token whose signature checks out and
// whose verified claim is true; it performs no further auth logic and
// never issues tokens of its own (Generate exists for tests and tooling).
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims are the claims the auth provider puts into its tokens.
type IdentityClaims struct {
	UserUID              string `json:"user_uid"` // Opaque user id, the ledger key
	Email                string `json:"email,omitempty"`
	Verified             bool   `json:"verified"` // Identity proof flag set by the auth provider
	jwt.RegisteredClaims        // Standard claims (ExpiresAt, IssuedAt etc.)
}

// GenerateToken signs a token with the given claims. Used by tests and
// local tooling to mimic the auth provider.
func (j *MakerImpl) GenerateToken(userUID, email string, verified bool, ttl time.Duration) (string, error) {
	claims := IdentityClaims{
		UserUID:  userUID,
		Email:    email,
		Verified: verified,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken checks the token signature and validity and returns the
// identity claims when the token is good.
func (j *MakerImpl) ParseToken(tokenStr string) (*IdentityClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &IdentityClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
