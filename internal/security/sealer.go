package security

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// ErrSealedData is returned by Open when the input is truncated, tampered with, or sealed under
// another passphrase.
var ErrSealedData = errors.New("sealed data is malformed or the passphrase is wrong")

const (
	saltLen  = 16
	nonceLen = 24
	keyLen   = 32
)

// Sealer encrypts small blobs (the persisted session) with a passphrase-derived key.
// Output layout: salt(16) | nonce(24) | secretbox.
type Sealer struct {
	passphrase []byte
	// scrypt cost parameter; lowered in tests.
	n int
}

// NewSealer returns a Sealer for the given passphrase.
func NewSealer(passphrase string) *Sealer {
	return &Sealer{passphrase: []byte(passphrase), n: 1 << 15}
}

func (s *Sealer) key(salt []byte) (*[keyLen]byte, error) {
	k, err := scrypt.Key(s.passphrase, salt, s.n, 8, 1, keyLen)
	if err != nil {
		return nil, err
	}
	var key [keyLen]byte
	copy(key[:], k)
	return &key, nil
}

// Seal encrypts plain under a fresh salt and nonce.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	header := make([]byte, saltLen+nonceLen)
	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return nil, err
	}
	key, err := s.key(header[:saltLen])
	if err != nil {
		return nil, err
	}
	var nonce [nonceLen]byte
	copy(nonce[:], header[saltLen:])
	return secretbox.Seal(header, plain, &nonce, key), nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltLen+nonceLen+secretbox.Overhead {
		return nil, ErrSealedData
	}
	key, err := s.key(sealed[:saltLen])
	if err != nil {
		return nil, err
	}
	var nonce [nonceLen]byte
	copy(nonce[:], sealed[saltLen:saltLen+nonceLen])
	plain, ok := secretbox.Open(nil, sealed[saltLen+nonceLen:], &nonce, key)
	if !ok {
		return nil, ErrSealedData
	}
	return plain, nil
}
