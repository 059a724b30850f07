package lib

import (
	"bytes"

	"github.com/auric-network/auric/lib/crypto"
)

/*
	This file implements the signed block proposal. A proposer that re-proposes
	a locked block attaches the prevotes of the locking round as proof-of-lock
*/

// Proposal is a signed block offered for a specific (height, round)
type Proposal struct {
	From        []byte  `json:"from"`        // the proposing validator's address
	Height      uint64  `json:"height"`      // the height being proposed at
	Round       uint64  `json:"round"`       // the round being proposed at
	Block       *Block  `json:"block"`       // the full proposed block
	BlockHash   []byte  `json:"blockHash"`   // the identity of the proposed block
	ProofOfLock []*Vote `json:"proofOfLock"` // the +2/3 prevotes of the locking round, if re-proposing a lock
	PubKey      []byte  `json:"pubKey"`      // the public key that pairs with the From address
	Signature   []byte  `json:"signature"`   // the proposer's signature over the sign bytes
}

// SignBytes() returns the canonical signature-less encoding of the proposal
func (p *Proposal) SignBytes(chainId string) []byte {
	canonical := &Proposal{
		From:        p.From,
		Height:      p.Height,
		Round:       p.Round,
		Block:       p.Block,
		BlockHash:   p.BlockHash,
		ProofOfLock: p.ProofOfLock,
		PubKey:      p.PubKey,
	}
	return append([]byte(chainId), MustMarshal(canonical)...)
}

// ID() returns the identity of the proposal: the hash of everything but the signature
func (p *Proposal) ID(chainId string) []byte { return crypto.Hash(p.SignBytes(chainId)) }

// Sign() populates the signature using the proposer's private key
func (p *Proposal) Sign(pk crypto.PrivateKeyI, chainId string) {
	p.PubKey = pk.PublicKey().Bytes()
	p.From = pk.PublicKey().Address().Bytes()
	p.Signature = pk.Sign(p.SignBytes(chainId))
}

// CheckBasic() validates the proposal's shape, key/address pairing, signature,
// height agreement, and that the advertised hash matches the block
func (p *Proposal) CheckBasic(chainId string) ErrorI {
	if p.Block == nil {
		return ErrInvalidProposal("no block")
	}
	if p.Block.Header == nil {
		return ErrInvalidProposal("no block header")
	}
	if p.Block.Header.Height != p.Height {
		return ErrInvalidProposal("block height does not match proposal height")
	}
	pub, err := crypto.NewPublicKeyFromBytes(p.PubKey)
	if err != nil {
		return ErrInvalidSignature()
	}
	if !pub.Address().Equals(crypto.NewAddressFromBytes(p.From)) {
		return ErrInvalidPubKey()
	}
	if !pub.VerifyBytes(p.SignBytes(chainId), p.Signature) {
		return ErrInvalidSignature()
	}
	if !bytes.Equal(p.BlockHash, p.Block.Hash()) {
		return ErrInvalidBlockHash()
	}
	return nil
}

// Equivocates() returns true if two proposals share (height, round) and author
// but offer different blocks
func (p *Proposal) Equivocates(other *Proposal) bool {
	return p.Height == other.Height && p.Round == other.Round &&
		bytes.Equal(p.From, other.From) && !bytes.Equal(p.BlockHash, other.BlockHash)
}

// NewProposal() builds and signs a proposal for a block
func NewProposal(pk crypto.PrivateKeyI, view *View, block *Block, pol []*Vote, chainId string) *Proposal {
	p := &Proposal{
		Height:      view.Height,
		Round:       view.Round,
		Block:       block,
		BlockHash:   block.Hash(),
		ProofOfLock: pol,
	}
	p.Sign(pk, chainId)
	return p
}
