package lib

import (
	amino "github.com/tendermint/go-amino"
)

/*
	This file implements the deterministic wire codec of the node. Every network
	payload and every sign-bytes preimage is an amino encoding of a canonical,
	signature-less structure so that all peers produce bit-identical bytes
*/

var cdc = amino.NewCodec()

func init() {
	cdc.RegisterInterface((*MessageI)(nil), nil)
	cdc.RegisterConcrete(&Block{}, "auric/Block", nil)
	cdc.RegisterConcrete(&BlockHeader{}, "auric/BlockHeader", nil)
	cdc.RegisterConcrete(&Transaction{}, "auric/Transaction", nil)
	cdc.RegisterConcrete(&Vote{}, "auric/Vote", nil)
	cdc.RegisterConcrete(&Proposal{}, "auric/Proposal", nil)
}

// RegisterConcrete() adds a concrete type to the global codec; payload packages
// register their message variants at init time
func RegisterConcrete(o interface{}, name string) {
	cdc.RegisterConcrete(o, name, nil)
}

// Marshal() encodes an object into deterministic wire bytes
func Marshal(o interface{}) ([]byte, ErrorI) {
	bz, err := cdc.MarshalBinaryLengthPrefixed(o)
	if err != nil {
		return nil, ErrMarshal(err)
	}
	return bz, nil
}

// MustMarshal() encodes an object and panics on failure; reserved for
// consensus-critical encodings where failure means a programming error
func MustMarshal(o interface{}) []byte {
	bz, err := Marshal(o)
	if err != nil {
		panic(err.Error())
	}
	return bz
}

// Unmarshal() decodes deterministic wire bytes into an object pointer
func Unmarshal(bz []byte, ptr interface{}) ErrorI {
	if err := cdc.UnmarshalBinaryLengthPrefixed(bz, ptr); err != nil {
		return ErrUnmarshal(err)
	}
	return nil
}
