package lib

import (
	"container/list"
	"sync"

	"github.com/auric-network/auric/lib/crypto"
)

/*
	This file implements the transaction pool: the ordered set of pending
	transactions a proposer drains when building a block. Arrival order is
	preserved; duplicates are rejected by transaction identity
*/

// MempoolI accepts and forwards transactions toward the next proposed block
type MempoolI interface {
	AddTransaction(tx *Transaction) ErrorI
	GetTransactions(limit int) []*Transaction
	DeleteTransactions(txs []*Transaction)
	Contains(hash string) bool
	TxCount() int
	TxsBytes() uint64
	Clear()
}

var _ MempoolI = &Mempool{}

// Mempool is the concrete FIFO implementation of MempoolI
type Mempool struct {
	mu      sync.RWMutex
	chainId string
	config  MempoolConfig
	order   *list.List               // arrival ordered *Transaction
	byHash  map[string]*list.Element // tx id (hex) -> list element
	bytes   uint64                   // total wire size of pooled transactions
}

// NewMempool() creates a bounded, arrival ordered transaction pool
func NewMempool(chainId string, config MempoolConfig) *Mempool {
	return &Mempool{
		chainId: chainId,
		config:  config,
		order:   list.New(),
		byHash:  make(map[string]*list.Element),
	}
}

// AddTransaction() appends a transaction to the pool, rejecting duplicates and
// enforcing the configured count and byte limits
func (m *Mempool) AddTransaction(tx *Transaction) ErrorI {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := uint64(len(MustMarshal(tx)))
	if size > m.config.MaxTxSize() {
		return ErrTxTooLarge()
	}
	if uint32(m.order.Len()) >= m.config.MaxTransactionCount || m.bytes+size > m.config.MaxMempoolSize() {
		return ErrMempoolFull()
	}
	hash := crypto.HashString(tx.SignBytes(m.chainId))
	if _, ok := m.byHash[hash]; ok {
		return ErrDuplicateTransaction()
	}
	m.byHash[hash] = m.order.PushBack(tx)
	m.bytes += size
	return nil
}

// GetTransactions() returns up to limit transactions in arrival order without removing them
func (m *Mempool) GetTransactions(limit int) (txs []*Transaction) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for e := m.order.Front(); e != nil && len(txs) < limit; e = e.Next() {
		txs = append(txs, e.Value.(*Transaction))
	}
	return
}

// DeleteTransactions() removes the given transactions from the pool; used after
// a block commits to prune what it included
func (m *Mempool) DeleteTransactions(txs []*Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		hash := crypto.HashString(tx.SignBytes(m.chainId))
		if e, ok := m.byHash[hash]; ok {
			m.bytes -= uint64(len(MustMarshal(tx)))
			m.order.Remove(e)
			delete(m.byHash, hash)
		}
	}
}

// Contains() returns true if a transaction with this id (hex) is pooled
func (m *Mempool) Contains(hash string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byHash[hash]
	return ok
}

// TxCount() returns the number of pooled transactions
func (m *Mempool) TxCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.order.Len()
}

// TxsBytes() returns the total wire size of pooled transactions
func (m *Mempool) TxsBytes() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes
}

// Clear() empties the pool
func (m *Mempool) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order.Init()
	m.byHash = make(map[string]*list.Element)
	m.bytes = 0
}
