package lib

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// poolMsg is a minimal payload for pool tests; real payloads live beside the ledger
type poolMsg struct {
	Data []byte
}

func (p *poolMsg) Check() ErrorI { return nil }
func (p *poolMsg) Name() string  { return "pool-test" }

func init() { RegisterConcrete(&poolMsg{}, "lib/poolMsg") }

// poolTx() builds a signed transaction carrying distinguishable bytes
func poolTx(t *testing.T, nonce uint64) *Transaction {
	t.Helper()
	key := testVoteKey(t)
	return NewTransaction(key, &poolMsg{Data: []byte(fmt.Sprintf("tx-%d", nonce))}, nonce, testChainId)
}

func TestMempoolOrderAndDedupe(t *testing.T) {
	pool := NewMempool(testChainId, DefaultMempoolConfig())
	first, second, third := poolTx(t, 1), poolTx(t, 2), poolTx(t, 3)
	for _, tx := range []*Transaction{first, second, third} {
		require.NoError(t, pool.AddTransaction(tx))
	}
	// a duplicate is rejected by identity
	err := pool.AddTransaction(second)
	require.Error(t, err)
	require.Equal(t, CodeDuplicateTransaction, err.Code())
	// arrival order is preserved
	txs := pool.GetTransactions(10)
	require.Equal(t, []*Transaction{first, second, third}, txs)
	// the limit caps the drain without removing anything
	require.Len(t, pool.GetTransactions(2), 2)
	require.Equal(t, 3, pool.TxCount())
}

func TestMempoolDelete(t *testing.T) {
	pool := NewMempool(testChainId, DefaultMempoolConfig())
	first, second := poolTx(t, 1), poolTx(t, 2)
	require.NoError(t, pool.AddTransaction(first))
	require.NoError(t, pool.AddTransaction(second))
	pool.DeleteTransactions([]*Transaction{first})
	require.Equal(t, 1, pool.TxCount())
	require.Equal(t, []*Transaction{second}, pool.GetTransactions(10))
	// deleting what was already pruned is a no-op
	pool.DeleteTransactions([]*Transaction{first})
	require.Equal(t, 1, pool.TxCount())
}

func TestMempoolLimits(t *testing.T) {
	config := DefaultMempoolConfig()
	config.MaxTransactionCount = 2
	pool := NewMempool(testChainId, config)
	require.NoError(t, pool.AddTransaction(poolTx(t, 1)))
	require.NoError(t, pool.AddTransaction(poolTx(t, 2)))
	err := pool.AddTransaction(poolTx(t, 3))
	require.Error(t, err)
	require.Equal(t, CodeMempoolFull, err.Code())
	// a transaction above the size limit never enters
	config = DefaultMempoolConfig()
	config.MaxTransactionBytes = "64B"
	pool = NewMempool(testChainId, config)
	err = pool.AddTransaction(poolTx(t, 1))
	require.Error(t, err)
	require.Equal(t, CodeTxTooLarge, err.Code())
}

func TestMempoolClear(t *testing.T) {
	pool := NewMempool(testChainId, DefaultMempoolConfig())
	require.NoError(t, pool.AddTransaction(poolTx(t, 1)))
	require.NotZero(t, pool.TxsBytes())
	pool.Clear()
	require.Zero(t, pool.TxCount())
	require.Zero(t, pool.TxsBytes())
}
