package chanbackup

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Packed backups are laid out as nonce || ciphertext || tag, with the 24 byte
// XChaCha20-Poly1305 nonce doubling as the associated data. The key is the
// SHA256 of the compressed base key handed out by the KeyRing.

// ErrNoBackupKey is returned when a StaticKeyRing has no key set.
var ErrNoBackupKey = errors.New("no backup base key set")

// KeyRing hands out the base key that static channel backups are encrypted
// with. In lnd this is the public key at index 0 of the static backup key
// family.
type KeyRing interface {
	// DeriveBackupKey returns the base public key used to derive the
	// backup encryption key.
	DeriveBackupKey() (*btcec.PublicKey, error)
}

// StaticKeyRing is a KeyRing that returns a fixed base key, for when the key
// was exported from the wallet ahead of time.
type StaticKeyRing struct {
	// BaseKey is the base backup encryption key.
	BaseKey *btcec.PublicKey
}

// DeriveBackupKey returns the configured base key.
//
// NOTE: This is part of the KeyRing interface.
func (s *StaticKeyRing) DeriveBackupKey() (*btcec.PublicKey, error) {
	if s.BaseKey == nil {
		return nil, ErrNoBackupKey
	}

	return s.BaseKey, nil
}

// newBackupCipher returns the AEAD keyed by the backup key of keyRing.
func newBackupCipher(keyRing KeyRing) (cipher.AEAD, error) {
	baseKey, err := keyRing.DeriveBackupKey()
	if err != nil {
		return nil, err
	}

	key := sha256.Sum256(baseKey.SerializeCompressed())

	return chacha20poly1305.NewX(key[:])
}

// sealBackup encrypts plaintext under a fresh random nonce and writes the
// packed result to w.
func sealBackup(plaintext []byte, w io.Writer, keyRing KeyRing) error {
	aead, err := newBackupCipher(keyRing)
	if err != nil {
		return err
	}

	packed := make([]byte, aead.NonceSize(), aead.NonceSize()+
		len(plaintext)+aead.Overhead())
	if _, err := rand.Read(packed); err != nil {
		return err
	}

	nonce := packed[:aead.NonceSize()]
	packed = aead.Seal(packed, nonce, plaintext, nonce)

	_, err = w.Write(packed)
	return err
}

// openBackup reads a packed backup from r and returns its plaintext.
func openBackup(r io.Reader, keyRing KeyRing) ([]byte, error) {
	aead, err := newBackupCipher(keyRing)
	if err != nil {
		return nil, err
	}

	packed, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	minSize := aead.NonceSize() + aead.Overhead()
	if len(packed) < minSize {
		return nil, fmt.Errorf("payload size too small, must be at "+
			"least %v bytes", minSize)
	}

	nonce, ciphertext := packed[:aead.NonceSize()], packed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nonce)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt backup: %w", err)
	}

	return plaintext, nil
}
