package controller

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"github.com/auric-network/auric/bft"
	"github.com/auric-network/auric/fsm"
	"github.com/auric-network/auric/lib"
	"github.com/auric-network/auric/lib/crypto"
	"github.com/auric-network/auric/p2p"
	"github.com/auric-network/auric/store"
)

/*
	This file implements the node controller: the owner of the committed chain
	and the host surface of the consensus engine. The controller wires the
	ledger, the transaction pool, the chain store, and the network behind the
	engine's callbacks and pumps inbound network messages to their consumers
*/

// Controller wires one validator's subsystems together
type Controller struct {
	mu sync.Mutex // guards the head against concurrent engine and rpc access

	config     lib.Config
	privateKey crypto.PrivateKeyI
	address    crypto.AddressI

	head       *lib.Block       // the committed head block
	headLedger *fsm.StakeLedger // the ledger snapshot of the committed head

	mempool *lib.Mempool
	store   *store.BlockStore
	network p2p.NetworkI
	inbox   <-chan *p2p.Message
	engine  *bft.BFT
	metrics *lib.Metrics
	log     lib.LoggerI

	nonce uint64        // entropy for self-built transactions
	quit  chan struct{} // closed to stop the inbox pump
}

// New() builds a validator node: the genesis chain state, the store, the
// pool, the network registration, and the consensus engine
func New(config lib.Config, valKey crypto.PrivateKeyI, genesis *lib.GenesisFile, sb *p2p.Switchboard, m *lib.Metrics, log lib.LoggerI) (*Controller, lib.ErrorI) {
	genesisLedger, err := fsm.NewGenesisLedger(genesis, config.UnstakeDelay)
	if err != nil {
		return nil, err
	}
	chainStore, err := store.New(config, log)
	if err != nil {
		return nil, err
	}
	genesisBlock := &lib.Block{Header: &lib.BlockHeader{
		Height:    0,
		StateRoot: genesisLedger.Root(),
		TxRoot:    lib.TxRoot(nil),
	}}
	if err = chainStore.CommitBlock(genesisBlock, genesisLedger); err != nil {
		return nil, err
	}
	address := valKey.PublicKey().Address()
	c := &Controller{
		config:     config,
		privateKey: valKey,
		address:    address,
		head:       genesisBlock,
		headLedger: genesisLedger,
		mempool:    lib.NewMempool(config.ChainId, config.MempoolConfig),
		store:      chainStore,
		network:    sb,
		inbox:      sb.Register(address.String()),
		metrics:    m,
		log:        log,
		quit:       make(chan struct{}),
	}
	c.engine = bft.New(config, valKey, c, m, log)
	return c, nil
}

// Start() runs the consensus engine and the network pump
func (c *Controller) Start() {
	go c.engine.Start()
	go c.pumpInbox()
}

// Stop() halts the engine, the pump, and the store
func (c *Controller) Stop() {
	c.engine.Stop()
	close(c.quit)
	c.store.Close()
}

// pumpInbox() routes inbound network messages: transactions to the pool,
// consensus messages to the engine
func (c *Controller) pumpInbox() {
	for {
		select {
		case msg, ok := <-c.inbox:
			if !ok {
				return
			}
			switch msg.Channel {
			case lib.ChannelTx:
				tx := new(lib.Transaction)
				if err := lib.Unmarshal(msg.Payload, tx); err != nil {
					c.log.Warnf("undecodable transaction: %s", err.Error())
					continue
				}
				if err := c.HandleTransaction(tx); err != nil {
					c.log.Debugf("rejected transaction: %s", err.Error())
				}
			default:
				c.engine.Inbox <- &bft.Envelope{Channel: msg.Channel, Payload: msg.Payload}
			}
		case <-c.quit:
			return
		}
	}
}

// HandleTransaction() checks an inbound transaction and pools it
func (c *Controller) HandleTransaction(tx *lib.Transaction) lib.ErrorI {
	if err := tx.Check(c.config.ChainId); err != nil {
		return err
	}
	if err := c.mempool.AddTransaction(tx); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.UpdateMempool(c.mempool.TxCount(), c.mempool.TxsBytes())
	}
	return nil
}

// Engine() exposes the consensus engine, primarily for tests
func (c *Controller) Engine() *bft.BFT { return c.engine }

// BlockByHeight() returns a committed block from the chain store
func (c *Controller) BlockByHeight(height uint64) (*lib.Block, lib.ErrorI) {
	return c.store.GetBlockByHeight(height)
}

// Address() returns the validator's own address
func (c *Controller) Address() crypto.AddressI { return c.address }

// bft.Controller implementation below

var _ bft.Controller = &Controller{}

// ChainId() returns the chain identifier mixed into sign bytes
func (c *Controller) ChainId() string { return c.config.ChainId }

// HeadBlock() returns the committed head block
func (c *Controller) HeadBlock() *lib.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

// HeadLedger() returns the ledger snapshot of the committed head
func (c *Controller) HeadLedger() *fsm.StakeLedger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headLedger
}

// ProduceBlock() drains the pool into a candidate block on top of the head
func (c *Controller) ProduceBlock(height uint64, proposer []byte) (*lib.Block, lib.ErrorI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	candidates := c.mempool.GetTransactions(int(c.config.MaxTransactionCount))
	child, included, err := c.headLedger.BuildChild(height, proposer, candidates, c.log)
	if err != nil {
		return nil, err
	}
	return &lib.Block{
		Header: &lib.BlockHeader{
			Height:          height,
			ParentHash:      c.head.Hash(),
			StateRoot:       child.Root(),
			TxRoot:          lib.TxRoot(included),
			ProposerAddress: proposer,
			Time:            uint64(time.Now().UnixMilli()),
			NumTxs:          uint64(len(included)),
		},
		Transactions: included,
	}, nil
}

// ValidateBlock() replays a proposed block against the committed head
func (c *Controller) ValidateBlock(b *lib.Block) lib.ErrorI {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !bytes.Equal(b.Header.ParentHash, c.head.Hash()) {
		return lib.ErrMissingParent()
	}
	_, err := c.headLedger.ApplyBlock(b)
	return err
}

// CommitBlock() installs a decided block: the replayed ledger becomes the
// authoritative snapshot, the store advances, and the pool drops what the
// block included
func (c *Controller) CommitBlock(b *lib.Block) lib.ErrorI {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !bytes.Equal(b.Header.ParentHash, c.head.Hash()) {
		return lib.ErrMissingParent()
	}
	child, err := c.headLedger.ApplyBlock(b)
	if err != nil {
		return err
	}
	if err = c.store.CommitBlock(b, child); err != nil {
		return err
	}
	c.head, c.headLedger = b, child
	c.mempool.DeleteTransactions(b.Transactions)
	if c.metrics != nil {
		c.metrics.UpdateMempool(c.mempool.TxCount(), c.mempool.TxsBytes())
	}
	return nil
}

// Broadcast() best-effort delivers a payload to every peer
func (c *Controller) Broadcast(channel string, payload []byte) {
	c.network.Broadcast(c.address.String(), channel, payload)
}

// SubmitEvidence() wraps an equivocation proof in a signed transaction,
// pools it for the next self-built block, and gossips it
func (c *Controller) SubmitEvidence(m *fsm.MessageEvidence) {
	tx := c.buildTransaction(m)
	if err := c.mempool.AddTransaction(tx); err != nil {
		c.log.Debugf("evidence not pooled: %s", err.Error())
	}
	c.Broadcast(lib.ChannelTx, lib.MustMarshal(tx))
}

// buildTransaction() signs a payload under the validator's own key
func (c *Controller) buildTransaction(msg lib.MessageI) *lib.Transaction {
	return lib.NewTransaction(c.privateKey, msg, atomic.AddUint64(&c.nonce, 1), c.config.ChainId)
}
