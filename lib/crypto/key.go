package crypto

import (
	"encoding/hex"
	"fmt"
)

// NewPrivateKey() generates a new private key for the global signing scheme
func NewPrivateKey() (PrivateKeyI, error) { return NewEd25519PrivateKey() }

// NewPrivateKeyFromBytes() creates a new PrivateKeyI interface from bytes
func NewPrivateKeyFromBytes(bz []byte) (PrivateKeyI, error) {
	if len(bz) != Ed25519PrivKeySize {
		return nil, ErrInvalidPrivateKeySize(len(bz))
	}
	return BytesToED25519Private(bz), nil
}

// NewPrivateKeyFromString() creates a new PrivateKeyI interface from a hex string
func NewPrivateKeyFromString(s string) (PrivateKeyI, error) {
	bz, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return NewPrivateKeyFromBytes(bz)
}

// ErrInvalidPrivateKeySize() the private key bytes are not the expected length
func ErrInvalidPrivateKeySize(size int) error {
	return fmt.Errorf("invalid private key size: %d", size)
}

// ErrInvalidPublicKeySize() the public key bytes are not the expected length
func ErrInvalidPublicKeySize(size int) error {
	return fmt.Errorf("invalid public key size: %d", size)
}
