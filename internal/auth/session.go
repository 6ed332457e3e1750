// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
)

// ErrInvalidToken is returned for any token that does not verify or lacks a usable identity.
var ErrInvalidToken = errors.New("invalid session token")

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenExpiry is how long issued tokens stay valid (0 => never).
	tokenExpiry time.Duration
)

// Init generates a fresh ed25519 key pair at runtime. Tokens signed with it
// do not survive a restart.
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return nil
}

// InitFromPath reads raw ed25519 private/public keys from file.
func InitFromPath(privatePath, publicPath string) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("key files are not raw ed25519 keys")
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	return nil
}

// WriteKeyFiles generates a key pair and writes it as raw bytes, for use with InitFromPath.
func WriteKeyFiles(privatePath, publicPath string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	if err := os.WriteFile(privatePath, priv, 0o600); err != nil {
		return fmt.Errorf("failed to write private key file: %w", err)
	}
	if err := os.WriteFile(publicPath, pub, 0o644); err != nil {
		return fmt.Errorf("failed to write public key file: %w", err)
	}
	return nil
}

// SetTokenExpiry sets the lifetime of tokens created from now on. Zero disables expiry.
func SetTokenExpiry(d time.Duration) {
	tokenExpiry = d
}

// CreateJWT creates a signed JWT carrying the identity: "sub" = id, "role", and "name"
// when a display name is known.
func CreateJWT(id models.Identity) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("signing key not initialized")
	}
	claims := jwt.MapClaims{
		"sub":  id.ID.String(),
		"role": string(id.Role),
		"iat":  time.Now().Unix(),
	}
	if id.DisplayName != "" {
		claims["name"] = id.DisplayName
	}
	if tokenExpiry > 0 {
		claims["exp"] = time.Now().Add(tokenExpiry).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a JWT string and returns the identity it carries.
func AuthenticateJWT(tokenString string) (models.Identity, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: invalid jwt claims", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: missing or malformed sub", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)
	if !models.Role(role).Valid() {
		return models.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	name, _ := claims["name"].(string)

	return models.Identity{ID: id, Role: models.Role(role), DisplayName: name}, nil
}
