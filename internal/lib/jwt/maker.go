package jwt

import "time"

// Maker describes parsing (and, for tests, generation) of identity tokens.
type Maker interface {
	GenerateToken(userUID, email string, verified bool, ttl time.Duration) (string, error)
	ParseToken(tokenStr string) (*IdentityClaims, error)
}

// MakerImpl verifies tokens against the shared secret of the auth provider.
type MakerImpl struct {
	secretKey string
}

// NewMaker creates a MakerImpl for the given shared secret.
func NewMaker(secretKey string) *MakerImpl {
	return &MakerImpl{secretKey: secretKey}
}
