package bft

import (
	"github.com/auric-network/auric/fsm"
	"github.com/auric-network/auric/lib"
)

/*
	This file defines the engine's inbound message envelope and the Controller:
	the host callbacks the engine drives (block building and validation, chain
	installation, broadcast, and evidence submission)
*/

// Envelope is a raw network payload tagged with the channel it arrived on
type Envelope struct {
	Channel string // one of the bit-stable channel identifiers
	Payload []byte // the wire encoding of a proposal or a vote
}

// Controller is the host surface of the engine: the node wires the chain,
// the mempool, and the network behind these callbacks
type Controller interface {
	// ChainId() returns the chain identifier mixed into sign bytes
	ChainId() string
	// HeadBlock() returns the current committed head of the chain
	HeadBlock() *lib.Block
	// HeadLedger() returns the ledger snapshot of the committed head
	HeadLedger() *fsm.StakeLedger
	// ProduceBlock() builds a candidate block for the height on top of the head
	ProduceBlock(height uint64, proposer []byte) (*lib.Block, lib.ErrorI)
	// ValidateBlock() replays a proposed block against the head ledger
	ValidateBlock(b *lib.Block) lib.ErrorI
	// CommitBlock() installs a decided block as the new head
	CommitBlock(b *lib.Block) lib.ErrorI
	// Broadcast() best-effort delivers a payload to every peer
	Broadcast(channel string, payload []byte)
	// SubmitEvidence() signs, pools, and broadcasts an evidence transaction
	SubmitEvidence(m *fsm.MessageEvidence)
}

// NewVoteEvidence() wraps two conflicting ballots as an evidence payload
func NewVoteEvidence(a, b *lib.Vote) *fsm.MessageEvidence {
	return &fsm.MessageEvidence{Cheater: a.From, VoteA: a, VoteB: b}
}

// NewProposalEvidence() wraps two conflicting proposals as an evidence payload
func NewProposalEvidence(a, b *lib.Proposal) *fsm.MessageEvidence {
	return &fsm.MessageEvidence{Cheater: a.From, ProposalA: a, ProposalB: b}
}
