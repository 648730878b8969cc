package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/google/uuid"
)

// refreshTokenBytes gives 256 bits of entropy per token
const refreshTokenBytes = 32

// GenerateRefreshTokenValue returns a new opaque token and its storage digest
func GenerateRefreshTokenValue() (value string, hash string, err error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", ErrRefreshTokenGenerationFailed(err)
	}
	value = base64.RawURLEncoding.EncodeToString(b)
	return value, HashRefreshToken(value), nil
}

// HashRefreshToken is the lookup key stores persist instead of the token itself
func HashRefreshToken(value string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(value)))
	return hex.EncodeToString(sum[:])
}

// NewRefreshToken builds an active record for userID. Stores call it from
// Issue and Rotate so every backend produces identical records.
func NewRefreshToken(userID kernel.UserID, ip string, now time.Time, ttl time.Duration) (*RefreshToken, error) {
	value, hash, err := GenerateRefreshTokenValue()
	if err != nil {
		return nil, err
	}
	return &RefreshToken{
		ID:          uuid.NewString(),
		Token:       value,
		TokenHash:   hash,
		UserID:      userID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		CreatedByIP: ip,
	}, nil
}
