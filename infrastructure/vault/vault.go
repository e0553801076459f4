package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"
	"postpilot/infrastructure/logger"
)

// Envelope layout: ivHex:authTagHex:cipherHex. The GCM tag is carried as its
// own segment so stored values can be inspected and validated piecewise.
const (
	envelopeSeparator = ":"
	gcmNonceSize      = 12
	gcmTagSize        = 16

	// Fixed salt: the derived key must be stable across restarts so stored
	// envelopes remain decryptable.
	kdfSalt = "postpilot-token-vault"
)

var ErrNoSecret = errors.New("vault secret not configured")

// Vault is a pure codec for OAuth tokens at rest. No storage or network
// calls; failures only log.
type Vault struct {
	aead cipher.AEAD
}

// New derives an AES-256 key from the configured secret via scrypt and
// prepares the AEAD once.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	key, err := scrypt.Key([]byte(secret), []byte(kdfSalt), 16384, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext into the iv:tag:cipher hex envelope.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	// Seal appends the tag to the ciphertext; split it back out.
	cipherText := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]
	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(cipherText),
	}, envelopeSeparator), nil
}

// Decrypt opens an envelope produced by Encrypt. Input without the envelope
// structure is treated as legacy unencrypted plaintext and returned as-is.
// A well-formed envelope that fails to decrypt is logged and returned
// unchanged; callers must treat a non-plaintext-looking result as fatal.
func (v *Vault) Decrypt(value string) string {
	parts := strings.Split(value, envelopeSeparator)
	if len(parts) != 3 {
		return value
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != v.aead.NonceSize() {
		logger.GetLogger().Warn("Token envelope has malformed iv segment")
		return value
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagSize {
		logger.GetLogger().Warn("Token envelope has malformed tag segment")
		return value
	}
	cipherText, err := hex.DecodeString(parts[2])
	if err != nil {
		logger.GetLogger().Warn("Token envelope has malformed cipher segment")
		return value
	}
	plaintext, err := v.aead.Open(nil, iv, append(cipherText, tag...), nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Token decryption failed; returning stored value")
		return value
	}
	return string(plaintext)
}

// IsEnvelope reports whether value carries the encrypted envelope structure:
// three hex segments with the iv and tag at their fixed sizes. Legacy
// plaintext that merely contains two colons does not qualify. Used by
// callers to detect a failed decrypt result.
func IsEnvelope(value string) bool {
	parts := strings.Split(value, envelopeSeparator)
	if len(parts) != 3 {
		return false
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != gcmNonceSize {
		return false
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagSize {
		return false
	}
	_, err = hex.DecodeString(parts[2])
	return err == nil
}

// NeedsRefresh reports whether a token with the given expiry should be
// refreshed now: true iff now+buffer >= expiry. Tokens without an expiry
// never need a refresh.
func NeedsRefresh(expiresAt *time.Time, buffer time.Duration) bool {
	if expiresAt == nil {
		return false
	}
	return !time.Now().UTC().Add(buffer).Before(*expiresAt)
}
