package bft

import (
	"github.com/auric-network/auric/lib"
)

/*
	PROPOSER ELECTION:

	The proposer of a round is chosen by accumulated power, the deterministic
	stake weighted round robin: every round each bonded validator gains its
	stake in priority and the chosen proposer pays the total bonded stake back.
	Over time each validator is selected in proportion to its stake, and the
	sum of all priorities is invariant round over round.

	Within a single height, failed rounds still consume a proposer slot, so the
	engine rotates a round-local copy of the accumulator; only the update of
	the round that actually commits is persisted on the block's ledger
*/

// SelectProposer() returns the address holding the strictly greatest
// accumulated power, breaking ties by lexicographic address order, then
// advances the accumulator in place for the next selection
func SelectProposer(accum map[string]int64, stake map[string]uint64) (proposer string, err lib.ErrorI) {
	if len(accum) == 0 {
		return "", lib.ErrEmptyAccumulator()
	}
	first := true
	var max int64
	for addr, power := range accum {
		switch {
		case first, power > max:
			proposer, max, first = addr, power, false
		case power == max && addr < proposer:
			// iteration order over the map is undefined; the tie must resolve
			// identically on every peer
			proposer = addr
		}
	}
	updateAccum(accum, stake, proposer)
	return proposer, nil
}

// updateAccum() applies the rotation rule to a power accumulator: each bonded
// validator gains its stake, the proposer pays back the total. Net zero
func updateAccum(accum map[string]int64, stake map[string]uint64, proposer string) {
	var total uint64
	for addr, s := range stake {
		accum[addr] += int64(s)
		total += s
	}
	accum[proposer] -= int64(total)
}
