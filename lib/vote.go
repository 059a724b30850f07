package lib

import (
	"bytes"

	"github.com/auric-network/auric/lib/crypto"
)

/*
	This file implements the signed ballot of the consensus protocol. A vote
	backs a specific (height, round, type, blockHash) with the sender's stake;
	a nil block hash is the distinguished 'no block this round' sentinel
*/

// VoteType marks which ballot box a vote belongs to
type VoteType uint8

const (
	VoteTypePrevote   VoteType = iota + 1 // cast after the proposal window closes
	VoteTypePrecommit                     // cast after a +2/3 prevote lock
	VoteTypeCommit                        // cast after a +2/3 precommit decision; survives rounds
)

// String() returns the human readable name of the vote type
func (v VoteType) String() string {
	switch v {
	case VoteTypePrevote:
		return "prevote"
	case VoteTypePrecommit:
		return "precommit"
	case VoteTypeCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Vote is a signed ballot for a specific (height, round, type, blockHash)
type Vote struct {
	From      []byte   `json:"from"`      // the voting validator's address
	Height    uint64   `json:"height"`    // the height being voted at
	Round     uint64   `json:"round"`     // the round being voted at
	Type      VoteType `json:"type"`      // prevote, precommit, or commit
	BlockHash []byte   `json:"blockHash"` // the block backed by this vote; empty means NIL
	PubKey    []byte   `json:"pubKey"`    // the public key that pairs with the From address
	Signature []byte   `json:"signature"` // the validator's signature over the sign bytes
}

// IsNil() returns true if the vote is for no block
func (v *Vote) IsNil() bool { return len(v.BlockHash) == 0 }

// SignBytes() returns the canonical signature-less encoding of the vote
func (v *Vote) SignBytes(chainId string) []byte {
	canonical := &Vote{
		From:      v.From,
		Height:    v.Height,
		Round:     v.Round,
		Type:      v.Type,
		BlockHash: v.BlockHash,
		PubKey:    v.PubKey,
	}
	return append([]byte(chainId), MustMarshal(canonical)...)
}

// ID() returns the identity of the vote: the hash of everything but the signature
func (v *Vote) ID(chainId string) []byte { return crypto.Hash(v.SignBytes(chainId)) }

// Sign() populates the signature using the validator's private key
func (v *Vote) Sign(pk crypto.PrivateKeyI, chainId string) {
	v.PubKey = pk.PublicKey().Bytes()
	v.From = pk.PublicKey().Address().Bytes()
	v.Signature = pk.Sign(v.SignBytes(chainId))
}

// CheckBasic() validates the vote's shape, key/address pairing, and signature
func (v *Vote) CheckBasic(chainId string) ErrorI {
	switch v.Type {
	case VoteTypePrevote, VoteTypePrecommit, VoteTypeCommit:
	default:
		return ErrInvalidVotePhase()
	}
	pub, err := crypto.NewPublicKeyFromBytes(v.PubKey)
	if err != nil {
		return ErrInvalidSignature()
	}
	if !pub.Address().Equals(crypto.NewAddressFromBytes(v.From)) {
		return ErrInvalidPubKey()
	}
	if !pub.VerifyBytes(v.SignBytes(chainId), v.Signature) {
		return ErrInvalidSignature()
	}
	return nil
}

// Stale() returns true if the vote is below the given view. Votes from earlier
// heights are always stale; votes from earlier rounds of the same height are
// stale unless they are commits, which remain valid across rounds
func (v *Vote) Stale(view *View) bool {
	if v.Height < view.Height {
		return true
	}
	if v.Height == view.Height && v.Round < view.Round && v.Type != VoteTypeCommit {
		return true
	}
	return false
}

// FresherThan() lexicographically compares (height, round) against another vote
func (v *Vote) FresherThan(other *Vote) bool {
	if v.Height != other.Height {
		return v.Height > other.Height
	}
	return v.Round > other.Round
}

// SameBallot() returns true if both votes are for the same (height, round, type)
func (v *Vote) SameBallot(other *Vote) bool {
	return v.Height == other.Height && v.Round == other.Round && v.Type == other.Type
}

// Equivocates() returns true if both votes share a ballot but back different block hashes
func (v *Vote) Equivocates(other *Vote) bool {
	return v.SameBallot(other) && bytes.Equal(v.From, other.From) &&
		!bytes.Equal(v.BlockHash, other.BlockHash)
}

// NewVote() builds and signs a ballot
func NewVote(pk crypto.PrivateKeyI, view *View, t VoteType, blockHash []byte, chainId string) *Vote {
	v := &Vote{
		Height:    view.Height,
		Round:     view.Round,
		Type:      t,
		BlockHash: blockHash,
	}
	v.Sign(pk, chainId)
	return v
}
