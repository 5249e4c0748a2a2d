package calendar

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	// ErrSealedTokenInvalid is returned when sealed data cannot be opened.
	ErrSealedTokenInvalid = errors.New("calendar: sealed token is invalid")
	// ErrSealingKeyMissing is returned when no sealing secret is configured.
	ErrSealingKeyMissing = errors.New("calendar: token sealing key is required")
)

// keyDerivation controls how passphrase secrets become sealing keys.
var keyDerivation = struct {
	salt        []byte
	iterations  uint32
	memory      uint32
	parallelism uint8
}{
	salt:        []byte("icebreaker/calendar-token/v1"),
	iterations:  3,
	memory:      64 * 1024,
	parallelism: 2,
}

// Sealer encrypts tokens at rest with NaCl secretbox.
type Sealer struct {
	key [keySize]byte
}

// NewSealer builds a Sealer from secret. A base64 encoded 32 byte value is
// used as the key directly; any other secret is stretched with argon2id.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrSealingKeyMissing
	}

	s := &Sealer{}
	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == keySize {
		copy(s.key[:], raw)
		return s, nil
	}

	derived := argon2.IDKey([]byte(secret), keyDerivation.salt, keyDerivation.iterations, keyDerivation.memory, keyDerivation.parallelism, keySize)
	copy(s.key[:], derived)
	return s, nil
}

// Seal encrypts plaintext. The random nonce is prepended to the output.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrSealedTokenInvalid
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrSealedTokenInvalid
	}
	return plaintext, nil
}
