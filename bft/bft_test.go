package bft

import (
	"testing"
	"time"

	"github.com/auric-network/auric/fsm"
	"github.com/auric-network/auric/lib"
	"github.com/auric-network/auric/lib/crypto"
	"github.com/stretchr/testify/require"
)

// proposalFrom() builds a signed proposal from a key for the engine's view
func proposalFrom(t *testing.T, key crypto.PrivateKeyI, mock *mockController, view *lib.View, extraTx *lib.Transaction) *lib.Proposal {
	t.Helper()
	if extraTx != nil {
		mock.mu.Lock()
		mock.candidates = append(mock.candidates, extraTx)
		mock.mu.Unlock()
	}
	block, err := mock.ProduceBlock(view.Height, key.PublicKey().Address().Bytes())
	require.NoError(t, err)
	return lib.NewProposal(key, view, block, nil, testChainId)
}

// proposerKey() returns the key whose address the engine expects this round
func proposerKey(t *testing.T, engine *BFT, keys []crypto.PrivateKeyI) crypto.PrivateKeyI {
	t.Helper()
	for _, key := range keys {
		if key.PublicKey().Address().String() == engine.proposer {
			return key
		}
	}
	t.Fatal("no key for expected proposer")
	return nil
}

func TestProposePhaseSelfProposer(t *testing.T) {
	engine, _, mock := newTestEngine(t, 1, 100)
	// a single validator is always its own proposer
	require.Equal(t, engine.address, engine.proposer)
	engine.StartProposePhase()
	payload := mock.lastBroadcast(lib.ChannelProposal)
	require.NotNil(t, payload, "the proposer must broadcast its proposal")
	p := new(lib.Proposal)
	require.NoError(t, lib.Unmarshal(payload, p))
	require.NoError(t, p.CheckBasic(testChainId))
	require.Len(t, engine.proposals, 1, "the proposer files its own proposal")
}

func TestPrevotePhasePrefersUniqueProposal(t *testing.T) {
	engine, keys, mock := newTestEngine(t, 4, 100)
	key := proposerKey(t, engine, keys)
	proposal := proposalFrom(t, key, mock, engine.View.Copy(), nil)
	engine.HandleProposal(proposal)
	require.Len(t, engine.proposals, 1)
	engine.StartPrevotePhase()
	payload := mock.lastBroadcast(lib.ChannelPrevote)
	require.NotNil(t, payload)
	v := new(lib.Vote)
	require.NoError(t, lib.Unmarshal(payload, v))
	require.Equal(t, proposal.BlockHash, v.BlockHash)
	require.Nil(t, engine.proposals, "the proposal buffer clears after the prevote")
}

func TestPrevotePhaseNilWithoutProposal(t *testing.T) {
	engine, _, mock := newTestEngine(t, 4, 100)
	engine.StartPrevotePhase()
	payload := mock.lastBroadcast(lib.ChannelPrevote)
	require.NotNil(t, payload)
	v := new(lib.Vote)
	require.NoError(t, lib.Unmarshal(payload, v))
	require.True(t, v.IsNil(), "no proposal means a NIL prevote")
}

func TestPrevotePhaseConflictingProposals(t *testing.T) {
	engine, keys, mock := newTestEngine(t, 4, 100)
	key := proposerKey(t, engine, keys)
	// two different blocks from the same proposer in one round
	first := proposalFrom(t, key, mock, engine.View.Copy(), nil)
	second := proposalFrom(t, key, mock, engine.View.Copy(),
		lib.NewTransaction(keys[1], &fsm.MessageStake{Amount: 10}, 1, testChainId))
	engine.HandleProposal(first)
	engine.HandleProposal(second)
	require.Len(t, engine.proposals, 2)
	engine.StartPrevotePhase()
	// the equivocation surfaced as evidence and the prevote is NIL
	select {
	case e := <-mock.evidence:
		require.NotNil(t, e.ProposalA)
		require.NotNil(t, e.ProposalB)
	default:
		t.Fatal("expected proposal evidence")
	}
	v := new(lib.Vote)
	require.NoError(t, lib.Unmarshal(mock.lastBroadcast(lib.ChannelPrevote), v))
	require.True(t, v.IsNil())
}

func TestPrevotePhaseHonorsLock(t *testing.T) {
	engine, keys, mock := newTestEngine(t, 4, 100)
	key := proposerKey(t, engine, keys)
	proposal := proposalFrom(t, key, mock, engine.View.Copy(), nil)
	engine.HandleProposal(proposal)
	// +2/3 prevotes for the block lock the engine
	for _, k := range keys[1:] {
		engine.HandleVote(vote(k, engine.Height, engine.Round, lib.VoteTypePrevote, proposal.BlockHash))
	}
	engine.StartPrecommitPhase()
	require.NotNil(t, engine.lockedBlock)
	require.NotEmpty(t, engine.lockedProof)
	// in the next round the prevote backs the lock even with no proposal
	engine.NewRound()
	engine.StartPrevotePhase()
	v := new(lib.Vote)
	require.NoError(t, lib.Unmarshal(mock.lastBroadcast(lib.ChannelPrevote), v))
	require.Equal(t, proposal.BlockHash, v.BlockHash)
}

func TestPrecommitPhaseNilReleasesLock(t *testing.T) {
	engine, keys, mock := newTestEngine(t, 4, 100)
	key := proposerKey(t, engine, keys)
	proposal := proposalFrom(t, key, mock, engine.View.Copy(), nil)
	engine.HandleProposal(proposal)
	for _, k := range keys[1:] {
		engine.HandleVote(vote(k, engine.Height, engine.Round, lib.VoteTypePrevote, proposal.BlockHash))
	}
	engine.StartPrecommitPhase()
	require.NotNil(t, engine.lockedBlock)
	mock.lastBroadcast(lib.ChannelPrecommit) // drain
	// a +2/3 NIL prevote round releases the lock and broadcasts nothing
	engine.NewRound()
	for _, k := range keys[1:] {
		engine.HandleVote(vote(k, engine.Height, engine.Round, lib.VoteTypePrevote, nil))
	}
	engine.StartPrevotePhase() // own prevote backs the lock
	engine.StartPrecommitPhase()
	require.Nil(t, engine.lockedBlock, "+2/3 NIL prevotes release the lock")
	require.Nil(t, mock.lastBroadcast(lib.ChannelPrecommit), "a NIL round precommits nothing")
}

func TestCommitDecisionAndFinalize(t *testing.T) {
	engine, keys, mock := newTestEngine(t, 4, 100)
	key := proposerKey(t, engine, keys)
	proposal := proposalFrom(t, key, mock, engine.View.Copy(), nil)
	engine.HandleProposal(proposal)
	for _, k := range keys[1:] {
		engine.HandleVote(vote(k, engine.Height, engine.Round, lib.VoteTypePrevote, proposal.BlockHash))
	}
	engine.StartPrecommitPhase()
	for _, k := range keys[1:] {
		engine.HandleVote(vote(k, engine.Height, engine.Round, lib.VoteTypePrecommit, proposal.BlockHash))
	}
	require.True(t, engine.StartCommitDecisionPhase())
	require.Equal(t, proposal.BlockHash, engine.nextBlock.Hash())
	engine.StartCommitPhase()
	for _, k := range keys[1:] {
		engine.HandleVote(vote(k, engine.Height, engine.Round, lib.VoteTypeCommit, proposal.BlockHash))
	}
	require.True(t, engine.StartFinalizePhase())
	require.EqualValues(t, 1, mock.HeadBlock().Header.Height, "the decided block is installed")
}

func TestCommitDecisionFailsToNewRound(t *testing.T) {
	engine, keys, _ := newTestEngine(t, 4, 100)
	// split precommits: no quorum
	hashX, hashY := crypto.Hash([]byte("x")), crypto.Hash([]byte("y"))
	engine.HandleVote(vote(keys[1], engine.Height, engine.Round, lib.VoteTypePrecommit, hashX))
	engine.HandleVote(vote(keys[2], engine.Height, engine.Round, lib.VoteTypePrecommit, hashY))
	require.False(t, engine.StartCommitDecisionPhase())
}

func TestHandleVoteEquivocationEmitsEvidence(t *testing.T) {
	engine, keys, mock := newTestEngine(t, 4, 100)
	hashX, hashY := crypto.Hash([]byte("x")), crypto.Hash([]byte("y"))
	engine.HandleVote(vote(keys[1], engine.Height, engine.Round, lib.VoteTypePrevote, hashX))
	engine.HandleVote(vote(keys[1], engine.Height, engine.Round, lib.VoteTypePrevote, hashY))
	select {
	case e := <-mock.evidence:
		require.Equal(t, keys[1].PublicKey().Address().Bytes(), e.Cheater)
	default:
		t.Fatal("expected vote evidence")
	}
	// the same pair is submitted once
	engine.HandleVote(vote(keys[1], engine.Height, engine.Round, lib.VoteTypePrevote, hashY))
	select {
	case <-mock.evidence:
		t.Fatal("evidence pair must not be re-submitted")
	default:
	}
}

func TestHandleVoteRejects(t *testing.T) {
	engine, keys, _ := newTestEngine(t, 4, 100)
	stranger, _ := newTestKeys(t, 1, 100)
	hashX := crypto.Hash([]byte("x"))
	// unbonded voter
	engine.HandleVote(vote(stranger[0], engine.Height, engine.Round, lib.VoteTypePrevote, hashX))
	require.Zero(t, engine.prevotes.Len())
	// wrong height
	engine.HandleVote(vote(keys[1], engine.Height+5, engine.Round, lib.VoteTypePrevote, hashX))
	require.Zero(t, engine.prevotes.Len())
	// tampered signature
	bad := vote(keys[1], engine.Height, engine.Round, lib.VoteTypePrevote, hashX)
	bad.Signature = []byte("forged")
	engine.HandleVote(bad)
	require.Zero(t, engine.prevotes.Len())
}

func TestHandleProposalRejectsWrongProposer(t *testing.T) {
	engine, keys, mock := newTestEngine(t, 4, 100)
	// find a key that is NOT the expected proposer
	var wrong crypto.PrivateKeyI
	for _, key := range keys {
		if key.PublicKey().Address().String() != engine.proposer {
			wrong = key
			break
		}
	}
	proposal := proposalFrom(t, wrong, mock, engine.View.Copy(), nil)
	engine.HandleProposal(proposal)
	require.Empty(t, engine.proposals)
}

func TestHandleProposalBuffersFutureRound(t *testing.T) {
	engine, keys, mock := newTestEngine(t, 4, 100)
	view := engine.View.Copy()
	view.Round = engine.Round + 1
	proposal := lib.NewProposal(keys[1], view, mustBlock(t, mock, keys[1]), nil, testChainId)
	engine.HandleProposal(proposal)
	require.Empty(t, engine.proposals)
	require.Len(t, engine.futureProposals[view.Round], 1, "the next round's proposal waits in the buffer")
}

func TestVerifyProofOfLock(t *testing.T) {
	engine, keys, mock := newTestEngine(t, 4, 100)
	// advance to round 2 so a round 1 proof is historical
	engine.NewRound()
	key := proposerKey(t, engine, keys)
	block, err := mock.ProduceBlock(engine.Height, key.PublicKey().Address().Bytes())
	require.NoError(t, err)
	pol := func(count int, round uint64, hash []byte) (votes []*lib.Vote) {
		for _, k := range keys[:count] {
			votes = append(votes, vote(k, engine.Height, round, lib.VoteTypePrevote, hash))
		}
		return
	}
	tests := []struct {
		name   string
		detail string
		votes  []*lib.Vote
		valid  bool
	}{
		{
			name:   "quorum proof",
			detail: "three of four prevotes from round one justify the lock",
			votes:  pol(3, 1, block.Hash()),
			valid:  true,
		},
		{
			name:   "no proof",
			detail: "a fresh proposal needs no proof",
			votes:  nil,
			valid:  true,
		},
		{
			name:   "below quorum",
			detail: "two of four prevotes do not justify a lock",
			votes:  pol(2, 1, block.Hash()),
		},
		{
			name:   "wrong block",
			detail: "the proof must back the proposed block",
			votes:  pol(3, 1, crypto.Hash([]byte("other"))),
		},
		{
			name:   "same round",
			detail: "the locking round must precede the proposal round",
			votes:  pol(3, 2, block.Hash()),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := lib.NewProposal(key, engine.View.Copy(), block, test.votes, testChainId)
			err := engine.verifyProofOfLock(p)
			if test.valid {
				require.NoError(t, err, test.detail)
			} else {
				require.Error(t, err, test.detail)
			}
		})
	}
}

func TestSingleValidatorLiveness(t *testing.T) {
	// one validator holds all stake: the engine must commit heights on its own
	engine, _, mock := newTestEngine(t, 1, 100)
	go engine.Start()
	defer engine.Stop()
	require.Eventually(t, func() bool {
		return mock.HeadBlock().Header.Height >= 3
	}, 10*time.Second, 20*time.Millisecond, "a lone validator must keep committing")
}

// mustBlock() builds a block on the mock head without applying it
func mustBlock(t *testing.T, mock *mockController, key crypto.PrivateKeyI) *lib.Block {
	t.Helper()
	block, err := mock.ProduceBlock(mock.HeadBlock().Header.Height+1, key.PublicKey().Address().Bytes())
	require.NoError(t, err)
	return block
}
