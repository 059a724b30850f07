package fsm

import (
	"github.com/auric-network/auric/lib"
)

/*
	This file implements the genesis ledger: height 0 state seeded from the
	genesis document. Every listed validator begins with accumulated power
	equal to its bonded stake
*/

// NewGenesisLedger() builds the height 0 ledger from a genesis document
func NewGenesisLedger(g *lib.GenesisFile, unstakeDelay uint64) (*StakeLedger, lib.ErrorI) {
	stake, err := g.StakeByAddress()
	if err != nil {
		return nil, err
	}
	if len(stake) == 0 {
		return nil, lib.ErrGenesisEmpty()
	}
	s := NewStakeLedger(g.ChainId, unstakeDelay)
	for addr, amount := range g.Balances {
		s.balances[addr] = amount
	}
	for addr, amount := range stake {
		s.stakeBalances[addr] = amount
		s.accumPower[addr] = int64(amount)
		// a bond is a lien on owned gold; top the balance up if the genesis
		// document lists less gold than the validator has bonded
		if s.balances[addr] < amount {
			s.balances[addr] = amount
		}
	}
	return s, nil
}
