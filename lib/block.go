package lib

import (
	"bytes"

	"github.com/auric-network/auric/lib/crypto"
)

/*
	This file implements the block: the unit of chain growth. The staking ledger
	itself lives beside the chain as a copy-on-write snapshot per block; the
	header commits to it through the state root
*/

// BlockHeader holds the consensus-relevant metadata of a block
type BlockHeader struct {
	Height          uint64 `json:"height"`          // the position of the block in the chain; genesis is 0
	ParentHash      []byte `json:"parentHash"`      // the identity of the parent block
	StateRoot       []byte `json:"stateRoot"`       // the digest of the ledger after applying this block
	TxRoot          []byte `json:"txRoot"`          // the digest of the ordered transactions
	ProposerAddress []byte `json:"proposerAddress"` // the validator that built this block
	Time            uint64 `json:"time"`            // the proposer's unix-milli clock at build time
	NumTxs          uint64 `json:"numTxs"`          // the number of transactions in this block
}

// Block is a header plus the ordered transactions it commits
type Block struct {
	Header       *BlockHeader   `json:"header"`
	Transactions []*Transaction `json:"transactions"`

	hash []byte // memoized identity
}

// Hash() returns the identity of the block: the digest of its header
func (b *Block) Hash() []byte {
	if b.hash != nil {
		return b.hash
	}
	b.hash = crypto.Hash(MustMarshal(b.Header))
	return b.hash
}

// HashString() returns the hex identity of the block
func (b *Block) HashString() string { return crypto.HashString(MustMarshal(b.Header)) }

// TxRoot() computes the digest of the ordered transaction list
func TxRoot(txs []*Transaction) []byte {
	preimage := make([]byte, 0, 256)
	for _, tx := range txs {
		preimage = append(preimage, crypto.Hash(MustMarshal(tx))...)
	}
	return crypto.Hash(preimage)
}

// Check() validates the structural integrity of the block: header presence,
// transaction count, and transaction root agreement
func (b *Block) Check() ErrorI {
	if b.Header == nil {
		return ErrInvalidProposal("no block header")
	}
	if b.Header.NumTxs != uint64(len(b.Transactions)) {
		return ErrInvalidProposal("transaction count does not match header")
	}
	if !bytes.Equal(b.Header.TxRoot, TxRoot(b.Transactions)) {
		return ErrInvalidProposal("transaction root does not match header")
	}
	return nil
}

// Equals() compares two blocks by identity
func (b *Block) Equals(other *Block) bool {
	if b == nil || other == nil {
		return false
	}
	return bytes.Equal(b.Hash(), other.Hash())
}
