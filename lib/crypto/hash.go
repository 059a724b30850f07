package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

const (
	HashSize = sha256.Size
)

/*
	Hash is the global content digest of the protocol: block identity, vote and
	proposal identity, and address derivation all reduce to this function
*/

// Hasher() returns the global hashing algorithm used
func Hasher() hash.Hash { return sha256.New() }

// Hash() executes the global hashing algorithm on input bytes
func Hash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:]
}

// HashString() returns the hex string version of the global hashing algorithm
func HashString(msg []byte) string { return hex.EncodeToString(Hash(msg)) }

// ShortHash() executes the global hashing algorithm on input bytes
// and truncates the output to 20 bytes
func ShortHash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:AddressSize]
}

// HashEqual() compares two hashes for byte equality
func HashEqual(a, b []byte) bool { return bytes.Equal(a, b) }
