package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrDecrypt means the ciphertext did not authenticate, usually because
// the encryption key changed under stored data.
var ErrDecrypt = errors.New("store: token decryption failed")

const (
	keySize   = 32
	nonceSize = 24
)

// Cipher seals and opens Todoist tokens with a static secretbox key.
// The nonce is random per sealing and prefixed to the ciphertext.
type Cipher struct {
	key [keySize]byte
}

// NewCipher parses a 64-character hex key.
func NewCipher(hexKey string) (*Cipher, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("store: bad encryption key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("store: encryption key must be %d bytes, got %d", keySize, len(raw))
	}
	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

func (c *Cipher) Seal(plaintext string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key), nil
}

func (c *Cipher) Open(ciphertext []byte) (string, error) {
	if len(ciphertext) < nonceSize {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	plain, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
