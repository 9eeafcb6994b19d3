// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"telegram-max-bridge/internal/domain"
)

// kdf parameters for non-AES-length secrets. The salt is fixed so the same
// configured secret always derives the same key: tokens encrypted under one
// process start must decrypt under the next.
const kdfIterations = 480_000

var kdfSalt = []byte("telegram-max-bridge-token-vault")

// EncryptionService is the credential vault: symmetric encryption for bot
// tokens at rest. AES-GCM (AEAD) with a random nonce per message.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService constructs an AES-GCM vault. A 16/24/32-byte key is
// used verbatim (AES-128/192/256); any other length is stretched to 32 bytes
// with PBKDF2-SHA256.
func NewEncryptionService(key string) (*EncryptionService, error) {
	if key == "" {
		return nil, fmt.Errorf("encryption key must not be empty")
	}
	k := []byte(key)
	switch len(k) {
	case 16, 24, 32:
	default:
		k = pbkdf2.Key(k, kdfSalt, kdfIterations, 32, sha256.New)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// Encrypt returns base64-encoded ciphertext. Format: base64(nonce || ciphertext).
// Empty input maps to empty output so optional credentials stay optional.
func (e *EncryptionService) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt accepts output of Encrypt and returns the original plaintext.
// Every failure mode wraps domain.ErrCredentialsUnreadable: the stored value
// is unusable and the tenant must re-enter the credential. It is never
// treated as "no credential".
func (e *EncryptionService) Decrypt(b64 string) (string, error) {
	if b64 == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", domain.ErrCredentialsUnreadable, err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrCredentialsUnreadable)
	}
	nonce, ct := data[:ns], data[ns:]
	pt, err := e.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gcm open: %v", domain.ErrCredentialsUnreadable, err)
	}
	return string(pt), nil
}
