package lib

import (
	"testing"

	"github.com/auric-network/auric/lib/crypto"
	"github.com/stretchr/testify/require"
)

func testTx(t *testing.T, nonce uint64) *Transaction {
	t.Helper()
	return NewTransaction(testVoteKey(t), &poolMsg{Data: []byte{byte(nonce)}}, nonce, testChainId)
}

func TestBlockIdentity(t *testing.T) {
	txs := []*Transaction{testTx(t, 1), testTx(t, 2)}
	header := &BlockHeader{
		Height:     3,
		ParentHash: crypto.Hash([]byte("parent")),
		StateRoot:  crypto.Hash([]byte("state")),
		TxRoot:     TxRoot(txs),
		NumTxs:     2,
	}
	a := &Block{Header: header, Transactions: txs}
	b := &Block{Header: header, Transactions: txs}
	// identity is the header digest, stable across instances
	require.Equal(t, a.Hash(), b.Hash())
	require.True(t, a.Equals(b))
	// a header change is a different block
	changed := *header
	changed.Height = 4
	c := &Block{Header: &changed, Transactions: txs}
	require.NotEqual(t, a.Hash(), c.Hash())
}

func TestBlockCheck(t *testing.T) {
	txs := []*Transaction{testTx(t, 1)}
	block := &Block{
		Header: &BlockHeader{
			Height: 1,
			TxRoot: TxRoot(txs),
			NumTxs: 1,
		},
		Transactions: txs,
	}
	require.NoError(t, block.Check())
	// a transaction swap breaks the root
	block.Transactions = []*Transaction{testTx(t, 9)}
	require.Error(t, block.Check())
	// a count mismatch is structural corruption
	block.Transactions = txs
	block.Header.NumTxs = 5
	require.Error(t, block.Check())
	// no header, no block
	require.Error(t, (&Block{}).Check())
}

func TestBlockWireRoundTrip(t *testing.T) {
	txs := []*Transaction{testTx(t, 1), testTx(t, 2)}
	block := &Block{
		Header: &BlockHeader{
			Height:     2,
			ParentHash: crypto.Hash([]byte("parent")),
			StateRoot:  crypto.Hash([]byte("state")),
			TxRoot:     TxRoot(txs),
			NumTxs:     2,
		},
		Transactions: txs,
	}
	bz := MustMarshal(block)
	decoded := new(Block)
	require.NoError(t, Unmarshal(bz, decoded))
	require.NoError(t, decoded.Check())
	require.Equal(t, block.Hash(), decoded.Hash())
	// the payloads survive the interface round trip
	require.Len(t, decoded.Transactions, 2)
	require.NoError(t, decoded.Transactions[0].Check(testChainId))
}
