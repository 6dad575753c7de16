// Package fieldcrypt encrypts individual form fields before they leave the
// process.
//
// ENVELOPE FORMAT:
// Each encrypted value is a single string made of three standard base64
// parts joined by dots:
//
//	<iv>.<tag>.<ciphertext>
//	 |     |     └─ AES-256-GCM ciphertext (same length as the plaintext)
//	 |     └─────── 16-byte GCM authentication tag
//	 └───────────── 12-byte random nonce, fresh for every call
//
// The key is SHA-256 of a configured secret, derived once in New.
// Rotating the secret makes every existing envelope unreadable, and Decrypt
// will hand those envelopes back unchanged.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

var (
	// ErrMalformed means the value does not have three non-empty parts.
	// Such values are treated as legacy plaintext.
	ErrMalformed = errors.New("fieldcrypt: malformed envelope")
	// ErrAuthentication means the envelope parsed but failed to open:
	// bad base64, wrong nonce length, or a tag mismatch.
	ErrAuthentication = errors.New("fieldcrypt: envelope failed authentication")
)

// Cipher seals and opens field envelopes under one fixed key.
// It is safe for concurrent use.
type Cipher struct {
	aead   cipher.AEAD
	rand   io.Reader
	logger *slog.Logger
}

// New derives the key from secret and prepares the AEAD.
// An empty secret is rejected; callers decide on any fallback.
func New(secret string, logger *slog.Logger) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("fieldcrypt: secret must not be empty")
	}

	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: creating cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: creating GCM: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Cipher{aead: aead, rand: rand.Reader, logger: logger}, nil
}

// Encrypt returns the envelope for plaintext, or "" when plaintext is "".
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("fieldcrypt: generating nonce: %w", err)
	}

	// Seal appends the tag after the ciphertext; the envelope stores it
	// separately, between the nonce and the ciphertext.
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	enc := base64.StdEncoding
	return enc.EncodeToString(nonce) + "." + enc.EncodeToString(tag) + "." + enc.EncodeToString(ct), nil
}

// Open is the strict form of Decrypt. It returns ErrMalformed for values
// that are not envelopes and ErrAuthentication for envelopes that do not
// verify under this key.
func (c *Cipher) Open(envelope string) (string, error) {
	parts := strings.Split(envelope, ".")
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", ErrMalformed
	}

	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: decoding nonce: %v", ErrAuthentication, err)
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: decoding tag: %v", ErrAuthentication, err)
	}
	ct, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: decoding ciphertext: %v", ErrAuthentication, err)
	}
	if len(nonce) != NonceSize || len(tag) != TagSize {
		return "", fmt.Errorf("%w: unexpected nonce or tag length", ErrAuthentication)
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return string(plaintext), nil
}

// Decrypt opens envelope and never fails:
//   - "" stays ""
//   - a value that is not an envelope is returned unchanged (legacy plaintext)
//   - an envelope that does not verify is returned unchanged
//
// The last case hides tampering and key rotation from readers, so it is
// logged at Warn.
func (c *Cipher) Decrypt(envelope string) string {
	if envelope == "" {
		return ""
	}

	plaintext, err := c.Open(envelope)
	switch {
	case err == nil:
		return plaintext
	case errors.Is(err, ErrMalformed):
		return envelope
	default:
		c.logger.Warn("field envelope failed to open, returning raw value",
			slog.String("error", err.Error()),
		)
		return envelope
	}
}
