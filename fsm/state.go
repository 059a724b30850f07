package fsm

import (
	"bytes"
	"encoding/hex"

	"github.com/auric-network/auric/lib"
)

// addrKey() is the ledger's map key for an address
func addrKey(addr []byte) string { return hex.EncodeToString(addr) }

/*
	This file implements block application: replaying a block's transactions on
	a child of the parent ledger and checking the result against the header's
	state root. A committed block's ledger becomes authoritative for the next
	height
*/

// ApplyTransaction() checks the envelope and routes the payload to its handler
func (s *StakeLedger) ApplyTransaction(tx *lib.Transaction) lib.ErrorI {
	if err := tx.Check(s.chainId); err != nil {
		return err
	}
	return s.HandleMessage(tx.From, tx.Msg)
}

// ApplyBlock() replays a proposed block on a child of this (parent) ledger and
// returns the resulting snapshot. Any invalid transaction, height gap, or
// state root mismatch invalidates the whole block
func (s *StakeLedger) ApplyBlock(b *lib.Block) (*StakeLedger, lib.ErrorI) {
	if err := b.Check(); err != nil {
		return nil, err
	}
	if b.Header.Height != s.height+1 {
		return nil, lib.ErrInvalidBlockHeight()
	}
	child := s.Child(b.Header.Height)
	for _, tx := range b.Transactions {
		if err := child.ApplyTransaction(tx); err != nil {
			return nil, err
		}
	}
	if err := child.UpdateAccumPower(addrKey(b.Header.ProposerAddress)); err != nil {
		return nil, err
	}
	if !bytes.Equal(child.Root(), b.Header.StateRoot) {
		return nil, lib.ErrStateRootMismatch()
	}
	return child, nil
}

// BuildChild() constructs the next-height ledger from a candidate transaction
// list, dropping transactions that do not apply cleanly, and advances the
// proposer rotation. It returns the snapshot and the transactions that made it in
func (s *StakeLedger) BuildChild(newHeight uint64, proposer []byte, candidates []*lib.Transaction, log lib.LoggerI) (*StakeLedger, []*lib.Transaction, lib.ErrorI) {
	child := s.Child(newHeight)
	included := make([]*lib.Transaction, 0, len(candidates))
	for _, tx := range candidates {
		if err := child.ApplyTransaction(tx); err != nil {
			log.Warnf("dropping transaction that does not apply: %s", err.Error())
			continue
		}
		included = append(included, tx)
	}
	if err := child.UpdateAccumPower(addrKey(proposer)); err != nil {
		return nil, nil, err
	}
	return child, included, nil
}
