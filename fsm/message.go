package fsm

import (
	"bytes"
	"encoding/hex"

	"github.com/auric-network/auric/lib"
)

/*
	This file implements the transaction payload variants and routes each to its
	ledger handler. The variant set is closed: an unrecognized payload makes the
	whole block invalid
*/

// MessageSend transfers available gold between accounts
type MessageSend struct {
	ToAddress []byte `json:"toAddress"` // the receiving address
	Amount    uint64 `json:"amount"`    // the gold moved
}

// MessageStake bonds gold from the sender
type MessageStake struct {
	Amount uint64 `json:"amount"` // the gold bonded
}

// MessageUnstake schedules a release of the sender's bonded gold
type MessageUnstake struct {
	Amount uint64 `json:"amount"` // the gold released after the unbonding delay
}

// MessageEvidence carries two conflicting signed messages proving equivocation.
// Exactly one pair is set: two votes or two proposals
type MessageEvidence struct {
	Cheater   []byte        `json:"cheater"`   // the accused validator's address
	VoteA     *lib.Vote     `json:"voteA"`     // first conflicting vote, if the pair is votes
	VoteB     *lib.Vote     `json:"voteB"`     // second conflicting vote
	ProposalA *lib.Proposal `json:"proposalA"` // first conflicting proposal, if the pair is proposals
	ProposalB *lib.Proposal `json:"proposalB"` // second conflicting proposal
}

var (
	_ lib.MessageI = &MessageSend{}
	_ lib.MessageI = &MessageStake{}
	_ lib.MessageI = &MessageUnstake{}
	_ lib.MessageI = &MessageEvidence{}
)

func init() {
	lib.RegisterConcrete(&MessageSend{}, "fsm/MessageSend")
	lib.RegisterConcrete(&MessageStake{}, "fsm/MessageStake")
	lib.RegisterConcrete(&MessageUnstake{}, "fsm/MessageUnstake")
	lib.RegisterConcrete(&MessageEvidence{}, "fsm/MessageEvidence")
}

// Name() returns the human readable payload name
func (m *MessageSend) Name() string { return "send" }

// Check() validates the payload shape
func (m *MessageSend) Check() lib.ErrorI {
	if m.Amount == 0 {
		return lib.ErrInvalidAmount()
	}
	if len(m.ToAddress) == 0 {
		return lib.ErrInvalidAddress()
	}
	return nil
}

// Name() returns the human readable payload name
func (m *MessageStake) Name() string { return "stake" }

// Check() validates the payload shape
func (m *MessageStake) Check() lib.ErrorI {
	if m.Amount == 0 {
		return lib.ErrInvalidAmount()
	}
	return nil
}

// Name() returns the human readable payload name
func (m *MessageUnstake) Name() string { return "unstake" }

// Check() validates the payload shape
func (m *MessageUnstake) Check() lib.ErrorI {
	if m.Amount == 0 {
		return lib.ErrInvalidAmount()
	}
	return nil
}

// Name() returns the human readable payload name
func (m *MessageEvidence) Name() string { return "evidence" }

// Check() validates the payload shape: exactly one conflicting pair present
func (m *MessageEvidence) Check() lib.ErrorI {
	if len(m.Cheater) == 0 {
		return lib.ErrInvalidAddress()
	}
	hasVotes := m.VoteA != nil && m.VoteB != nil
	hasProposals := m.ProposalA != nil && m.ProposalB != nil
	if hasVotes == hasProposals {
		return lib.ErrInvalidEvidence("exactly one conflicting pair must be set")
	}
	return nil
}

// HandleMessage() routes a payload to the correct ledger handler based on its type
func (s *StakeLedger) HandleMessage(from []byte, msg lib.MessageI) lib.ErrorI {
	sender := hex.EncodeToString(from)
	switch x := msg.(type) {
	case *MessageSend:
		return s.Send(sender, hex.EncodeToString(x.ToAddress), x.Amount)
	case *MessageStake:
		return s.Stake(sender, x.Amount)
	case *MessageUnstake:
		return s.Unstake(sender, x.Amount)
	case *MessageEvidence:
		return s.HandleMessageEvidence(x)
	default:
		return lib.ErrUnknownTxType(x)
	}
}

// HandleMessageEvidence() verifies an equivocation proof and slashes the
// accused. Both messages must independently verify, share an author and a
// ballot, and differ in identity; a pair that was already slashed is rejected
// so the same fault cannot be punished twice
func (s *StakeLedger) HandleMessageEvidence(m *MessageEvidence) lib.ErrorI {
	if err := m.Check(); err != nil {
		return err
	}
	var idA, idB, author []byte
	switch {
	case m.VoteA != nil:
		if err := m.VoteA.CheckBasic(s.chainId); err != nil {
			return lib.ErrInvalidEvidence("first vote does not verify")
		}
		if err := m.VoteB.CheckBasic(s.chainId); err != nil {
			return lib.ErrInvalidEvidence("second vote does not verify")
		}
		if !m.VoteA.Equivocates(m.VoteB) {
			return lib.ErrInvalidEvidence("votes do not conflict")
		}
		idA, idB, author = m.VoteA.ID(s.chainId), m.VoteB.ID(s.chainId), m.VoteA.From
	default:
		if err := m.ProposalA.CheckBasic(s.chainId); err != nil {
			return lib.ErrInvalidEvidence("first proposal does not verify")
		}
		if err := m.ProposalB.CheckBasic(s.chainId); err != nil {
			return lib.ErrInvalidEvidence("second proposal does not verify")
		}
		if !m.ProposalA.Equivocates(m.ProposalB) {
			return lib.ErrInvalidEvidence("proposals do not conflict")
		}
		idA, idB, author = m.ProposalA.ID(s.chainId), m.ProposalB.ID(s.chainId), m.ProposalA.From
	}
	if !bytes.Equal(author, m.Cheater) {
		return lib.ErrInvalidEvidence("the accused did not author the messages")
	}
	pair := PairKey(idA, idB)
	if _, seen := s.slashedPairs[pair]; seen {
		return lib.ErrDuplicateEvidence()
	}
	if err := s.Slash(hex.EncodeToString(m.Cheater)); err != nil {
		return err
	}
	s.slashedPairs[pair] = struct{}{}
	return nil
}

// PairKey() returns the order-independent key of an evidence pair
func PairKey(idA, idB []byte) string {
	a, b := hex.EncodeToString(idA), hex.EncodeToString(idB)
	if a > b {
		a, b = b, a
	}
	return a + b
}
