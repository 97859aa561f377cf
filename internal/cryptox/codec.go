// Package cryptox wraps internal storage keys into opaque reference tokens.
//
// A token is the unpadded URL-safe base64 encoding of
//
//	salt(16) ‖ iv(12) ‖ tag(16) ‖ ciphertext
//
// where the AES-256-GCM key is derived per token from the process master
// secret and the salt with argon2id. Tokens are non-deterministic: the same
// plaintext never encrypts to the same token twice.
package cryptox

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/hatemjaber/image-resize-server/internal/logging"
)

const (
	saltSize  = 16
	nonceSize = 12
	tagSize   = 16
	keySize   = 32

	headerSize = saltSize + nonceSize + tagSize
)

var (
	// ErrDecryptionFailed is the only error Decrypt reports, whatever the
	// underlying reason.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrEmptySecret is returned by NewCodec without a master secret.
	ErrEmptySecret = errors.New("master secret must not be empty")
)

var encoding = base64.RawURLEncoding

// Codec encrypts and decrypts storage keys. It is safe for concurrent use.
type Codec struct {
	secret []byte
	params KDFParams
	rand   io.Reader
	logger logging.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithKDFParams overrides the argon2id cost.
func WithKDFParams(p KDFParams) Option {
	return func(c *Codec) { c.params = p }
}

// WithLogger sets the logger that receives the concrete decrypt failures.
func WithLogger(l logging.Logger) Option {
	return func(c *Codec) { c.logger = l }
}

// WithRandom replaces the entropy source for salts and nonces.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) { c.rand = r }
}

// NewCodec returns a Codec keyed by secret. The secret is copied.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		params: DefaultKDFParams,
		rand:   rand.Reader,
		logger: logging.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encrypt wraps plaintext into a fresh reference token.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	buf := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(c.rand, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	salt, nonce := buf[:saltSize], buf[saltSize:]

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the token carries it first.
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, headerSize+len(ct))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)

	return encoding.EncodeToString(out), nil
}

// Decrypt recovers the plaintext wrapped in token. Every failure is
// reported as ErrDecryptionFailed.
func (c *Codec) Decrypt(token string) (string, error) {
	plaintext, err := c.open(token)
	if err != nil {
		c.logger.Debug(context.Background(), "reference token rejected", "cause", err.Error())
		return "", ErrDecryptionFailed
	}
	return plaintext, nil
}

func (c *Codec) open(token string) (string, error) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if len(raw) < headerSize {
		return "", fmt.Errorf("token too short: %d bytes", len(raw))
	}

	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+nonceSize]
	tag := raw[saltSize+nonceSize : headerSize]
	ct := raw[headerSize:]

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plaintext), nil
}

func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	key := DeriveKey(c.secret, salt, c.params)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
