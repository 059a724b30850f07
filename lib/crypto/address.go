package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
)

// Address is the short hash of a public key
type Address []byte

var _ AddressI = &Address{}

const (
	AddressSize = 20
)

func (a *Address) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }
func (a *Address) Bytes() []byte                { return (*a)[:] }
func (a *Address) String() string               { return hex.EncodeToString(a.Bytes()) }
func (a *Address) Equals(e AddressI) bool       { return bytes.Equal(a.Bytes(), e.Bytes()) }

func (a *Address) UnmarshalJSON(b []byte) (err error) {
	var hexString string
	if err = json.Unmarshal(b, &hexString); err != nil {
		return
	}
	bz, err := hex.DecodeString(hexString)
	if err != nil {
		return
	}
	*a = bz
	return
}

// NewAddressFromBytes() converts bytes into an AddressI object
func NewAddressFromBytes(bz []byte) AddressI {
	a := Address(bz)
	return &a
}

// NewAddressFromString() converts a hex string into an AddressI object
func NewAddressFromString(s string) (AddressI, error) {
	bz, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return NewAddressFromBytes(bz), nil
}
