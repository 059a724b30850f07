package bft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// rotate() runs n selections over a copy of the maps, returning the sequence
func rotate(t *testing.T, accum map[string]int64, stake map[string]uint64, n int) (sequence []string) {
	t.Helper()
	for i := 0; i < n; i++ {
		proposer, err := SelectProposer(accum, stake)
		require.NoError(t, err)
		sequence = append(sequence, proposer)
	}
	return
}

// genesisAccum() mirrors the genesis rule: power starts equal to stake
func genesisAccum(stake map[string]uint64) map[string]int64 {
	accum := make(map[string]int64, len(stake))
	for addr, s := range stake {
		accum[addr] = int64(s)
	}
	return accum
}

func TestEqualStakeRoundRobin(t *testing.T) {
	// four equal validators cycle in address order, then repeat
	stake := map[string]uint64{"aa": 100, "bb": 100, "cc": 100, "dd": 100}
	sequence := rotate(t, genesisAccum(stake), stake, 8)
	require.Equal(t, []string{"aa", "bb", "cc", "dd", "aa", "bb", "cc", "dd"}, sequence)
}

func TestSkewedStakeFairness(t *testing.T) {
	// stakes {400,100,100,100}: over 7 rounds the whale proposes 4 times and
	// each minnow once
	stake := map[string]uint64{"aa": 400, "bb": 100, "cc": 100, "dd": 100}
	sequence := rotate(t, genesisAccum(stake), stake, 7)
	counts := make(map[string]int)
	for _, proposer := range sequence {
		counts[proposer]++
	}
	require.Equal(t, 4, counts["aa"])
	require.Equal(t, 1, counts["bb"])
	require.Equal(t, 1, counts["cc"])
	require.Equal(t, 1, counts["dd"])
}

func TestProposerFairnessLongRun(t *testing.T) {
	// over k rounds each validator is selected within one slot of
	// k * stake / total
	stake := map[string]uint64{"aa": 300, "bb": 200, "cc": 100}
	const k = 600
	sequence := rotate(t, genesisAccum(stake), stake, k)
	counts := make(map[string]int)
	for _, proposer := range sequence {
		counts[proposer]++
	}
	total := uint64(600)
	for addr, s := range stake {
		expected := int(uint64(k) * s / total)
		require.InDelta(t, expected, counts[addr], 1, "validator %s", addr)
	}
}

func TestTieBreakIsLexicographic(t *testing.T) {
	stake := map[string]uint64{"zz": 100, "mm": 100, "aa": 100}
	accum := genesisAccum(stake)
	proposer, err := SelectProposer(accum, stake)
	require.NoError(t, err)
	require.Equal(t, "aa", proposer)
}

func TestSelectionConservesPower(t *testing.T) {
	stake := map[string]uint64{"aa": 400, "bb": 100, "cc": 100}
	accum := genesisAccum(stake)
	sum := func() (s int64) {
		for _, p := range accum {
			s += p
		}
		return
	}
	initial := sum()
	for i := 0; i < 50; i++ {
		_, err := SelectProposer(accum, stake)
		require.NoError(t, err)
		require.Equal(t, initial, sum())
	}
}

func TestEmptyAccumulator(t *testing.T) {
	_, err := SelectProposer(map[string]int64{}, map[string]uint64{})
	require.Error(t, err)
}
