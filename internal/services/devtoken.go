package services

import (
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

const (
	developerTokenTTL = 180 * 24 * time.Hour

	// developerTokenSlack is how long before expiry a cached token is replaced.
	developerTokenSlack = time.Hour
)

// DeveloperTokenMinter signs Apple Music developer tokens (ES256 JWTs) and caches them until
// shortly before they expire.
type DeveloperTokenMinter struct {
	teamID string
	keyID  string
	key    *ecdsa.PrivateKey
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewDeveloperTokenMinter parses a PEM encoded P-256 private key (the .p8 file from Apple).
func NewDeveloperTokenMinter(teamID, keyID string, privateKey []byte) (*DeveloperTokenMinter, error) {
	if teamID == "" || keyID == "" || len(privateKey) == 0 {
		return nil, fmt.Errorf("%w: apple team_id, key_id and private key are required", shared.ErrMissingCredentials)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: apple private key: %v", shared.ErrInvalidConfig, err)
	}
	return &DeveloperTokenMinter{teamID: teamID, keyID: keyID, key: key, now: time.Now}, nil
}

// Token returns a valid developer token, minting a new one when the cached token is close to expiry.
func (m *DeveloperTokenMinter) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.token != "" && now.Before(m.expires.Add(-developerTokenSlack)) {
		return m.token, nil
	}

	expires := now.Add(developerTokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    m.teamID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = m.keyID

	signed, err := t.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign developer token: %w", err)
	}
	m.token, m.expires = signed, expires
	return signed, nil
}
