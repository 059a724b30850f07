package store

import (
	"testing"

	"github.com/auric-network/auric/fsm"
	"github.com/auric-network/auric/lib"
	"github.com/auric-network/auric/lib/crypto"
	"github.com/stretchr/testify/require"
)

const testChainId = "auric-test"

func newTestStore(t *testing.T) *BlockStore {
	t.Helper()
	config := lib.DefaultConfig()
	config.InMemory = true
	s, err := New(config, lib.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func testChain(t *testing.T) (*lib.Block, *fsm.StakeLedger) {
	t.Helper()
	genesis := &lib.GenesisFile{
		ChainId:       testChainId,
		Balances:      map[string]uint64{"aa": 1000},
		StartingStake: map[string]uint64{"aa": 100},
	}
	ledger, err := fsm.NewGenesisLedger(genesis, 35)
	require.NoError(t, err)
	block := &lib.Block{Header: &lib.BlockHeader{
		Height:    0,
		StateRoot: ledger.Root(),
		TxRoot:    lib.TxRoot(nil),
	}}
	return block, ledger
}

func TestCommitAndGet(t *testing.T) {
	s := newTestStore(t)
	block, ledger := testChain(t)
	require.NoError(t, s.CommitBlock(block, ledger))
	// by hash
	byHash, err := s.GetBlock(block.Hash())
	require.NoError(t, err)
	require.Equal(t, block.Hash(), byHash.Hash())
	// by height
	byHeight, err := s.GetBlockByHeight(0)
	require.NoError(t, err)
	require.Equal(t, block.Hash(), byHeight.Hash())
	// the head follows the last commit
	head, err := s.GetHead()
	require.NoError(t, err)
	require.Equal(t, block.Hash(), head.Hash())
	// the ledger snapshot round-trips with an identical root
	restored, err := s.GetLedger(block.Hash(), testChainId, 35)
	require.NoError(t, err)
	require.Equal(t, ledger.Root(), restored.Root())
}

func TestHeadAdvances(t *testing.T) {
	s := newTestStore(t)
	genesisBlock, ledger := testChain(t)
	require.NoError(t, s.CommitBlock(genesisBlock, ledger))
	child := ledger.Child(1)
	next := &lib.Block{Header: &lib.BlockHeader{
		Height:     1,
		ParentHash: genesisBlock.Hash(),
		StateRoot:  child.Root(),
		TxRoot:     lib.TxRoot(nil),
	}}
	require.NoError(t, s.CommitBlock(next, child))
	head, err := s.GetHead()
	require.NoError(t, err)
	require.EqualValues(t, 1, head.Header.Height)
}

func TestNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetBlock(crypto.Hash([]byte("missing")))
	require.Error(t, err)
	require.Equal(t, lib.CodeBlockNotFound, err.Code())
	_, err = s.GetBlockByHeight(42)
	require.Error(t, err)
	require.Equal(t, lib.CodeBlockNotFound, err.Code())
}
