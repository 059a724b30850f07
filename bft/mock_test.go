package bft

import (
	"bytes"
	"sync"
	"testing"

	"github.com/auric-network/auric/fsm"
	"github.com/auric-network/auric/lib"
	"github.com/auric-network/auric/lib/crypto"
	"github.com/stretchr/testify/require"
)

// mockController backs the engine with a real ledger and captures everything
// the engine broadcasts or submits
type mockController struct {
	mu         sync.Mutex
	chainId    string
	head       *lib.Block
	ledger     *fsm.StakeLedger
	candidates []*lib.Transaction
	broadcasts chan *Envelope
	evidence   chan *fsm.MessageEvidence
}

var _ Controller = &mockController{}

// newMockController() builds a genesis chain with the given bonded keys
func newMockController(t *testing.T, keys []crypto.PrivateKeyI, stakeEach uint64) *mockController {
	t.Helper()
	genesis := &lib.GenesisFile{
		ChainId:       testChainId,
		Balances:      make(map[string]uint64),
		StartingStake: make(map[string]uint64),
	}
	for _, key := range keys {
		addr := key.PublicKey().Address().String()
		genesis.Balances[addr] = stakeEach * 10
		genesis.StartingStake[addr] = stakeEach
	}
	ledger, err := fsm.NewGenesisLedger(genesis, 35)
	require.NoError(t, err)
	return &mockController{
		chainId: testChainId,
		head: &lib.Block{Header: &lib.BlockHeader{
			Height:    0,
			StateRoot: ledger.Root(),
			TxRoot:    lib.TxRoot(nil),
		}},
		ledger:     ledger,
		broadcasts: make(chan *Envelope, 1000),
		evidence:   make(chan *fsm.MessageEvidence, 100),
	}
}

func (m *mockController) ChainId() string { return m.chainId }

func (m *mockController) HeadBlock() *lib.Block {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head
}

func (m *mockController) HeadLedger() *fsm.StakeLedger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger
}

func (m *mockController) ProduceBlock(height uint64, proposer []byte) (*lib.Block, lib.ErrorI) {
	m.mu.Lock()
	defer m.mu.Unlock()
	child, included, err := m.ledger.BuildChild(height, proposer, m.candidates, lib.NewNullLogger())
	if err != nil {
		return nil, err
	}
	return &lib.Block{
		Header: &lib.BlockHeader{
			Height:          height,
			ParentHash:      m.head.Hash(),
			StateRoot:       child.Root(),
			TxRoot:          lib.TxRoot(included),
			ProposerAddress: proposer,
			NumTxs:          uint64(len(included)),
		},
		Transactions: included,
	}, nil
}

func (m *mockController) ValidateBlock(b *lib.Block) lib.ErrorI {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !bytes.Equal(b.Header.ParentHash, m.head.Hash()) {
		return lib.ErrMissingParent()
	}
	_, err := m.ledger.ApplyBlock(b)
	return err
}

func (m *mockController) CommitBlock(b *lib.Block) lib.ErrorI {
	m.mu.Lock()
	defer m.mu.Unlock()
	child, err := m.ledger.ApplyBlock(b)
	if err != nil {
		return err
	}
	m.head, m.ledger, m.candidates = b, child, nil
	return nil
}

func (m *mockController) Broadcast(channel string, payload []byte) {
	m.broadcasts <- &Envelope{Channel: channel, Payload: payload}
}

func (m *mockController) SubmitEvidence(e *fsm.MessageEvidence) {
	m.evidence <- e
}

// lastBroadcast() drains the capture channel and returns the most recent
// payload on a channel, nil if none
func (m *mockController) lastBroadcast(channel string) (payload []byte) {
	for {
		select {
		case env := <-m.broadcasts:
			if env.Channel == channel {
				payload = env.Payload
			}
		default:
			return
		}
	}
}

// newTestEngine() builds an engine over a mock chain of n validators; the
// engine's own key is keys[0]
func newTestEngine(t *testing.T, n int, stakeEach uint64) (*BFT, []crypto.PrivateKeyI, *mockController) {
	t.Helper()
	keys, _ := newTestKeys(t, n, stakeEach)
	mock := newMockController(t, keys, stakeEach)
	config := lib.DefaultConfig()
	config.ChainId = testChainId
	config.DeltaMS = 10
	config.CommitTimeMS = 10
	config.NewHeightTimeoutMS = 1
	engine := New(config, keys[0], mock, nil, lib.NewNullLogger())
	engine.NewHeight()
	return engine, keys, mock
}
