package bft

import (
	"bytes"
	"encoding/hex"
	"time"

	"github.com/auric-network/auric/fsm"
	"github.com/auric-network/auric/lib"
	"github.com/auric-network/auric/lib/crypto"
)

/*
	This file implements the round state machine of the consensus engine:

		PROPOSE -> PREVOTE -> PRECOMMIT -> COMMIT-DECISION -> COMMIT -> FINALIZE

	Each phase of round r waits r x delta before stepping, the linear backoff
	that guarantees some round eventually completes under partial synchrony.
	A validator that sees +2/3 prevotes for a block locks on it and keeps
	prevoting it in later rounds of the height until +2/3 NIL prevotes release
	the lock or the block commits. Commit ballots are retained across rounds
	and carried into later tallies so peers that already committed pull the
	rest of the network forward.

	The engine is single threaded: one goroutine owns all state and selects
	over the phase timer and the inbound message channel, so every handler runs
	atomically to completion
*/

// maxBufferedProposals bounds the future-round proposal buffer per round
const maxBufferedProposals = 4

// maxBufferedNextHeight bounds the one-height-ahead message buffer; a node
// further behind than one height is the sync layer's problem
const maxBufferedNextHeight = 512

// BFT drives one validator through heights, rounds, and phases
type BFT struct {
	lib.View // the current period (Height/Round/Phase) the engine is executing

	privateKey crypto.PrivateKeyI // self consensus private key
	publicKey  crypto.PublicKeyI  // self consensus public key
	address    string             // self address (hex)
	chainId    string             // chain identifier mixed into sign bytes

	roundPower map[string]int64  // round-local power accumulator for this height
	stake      map[string]uint64 // bonded balances of the committed head, the vote weights of this height
	proposer   string            // this round's expected proposer (hex)

	proposals       []*lib.Proposal            // valid proposals received this round
	futureProposals map[uint64][]*lib.Proposal // proposals for later rounds of this height, validated when their round starts
	nextHeight      []*Envelope                // messages one height ahead, replayed when this node catches up
	blockCache      map[string]*lib.Block      // validated blocks of this height by hash (hex)
	prevotes        *VoteBox                   // prevote ballots of the current round
	precommits      *VoteBox                   // precommit ballots of the current round
	commits         *VoteBox                   // commit ballots, retained across rounds of the height

	lockedBlock *lib.Block  // the block this validator is locked on, if any
	lockedProof []*lib.Vote // the +2/3 prevotes that justified the lock
	nextBlock   *lib.Block  // the block that achieved +2/3 precommits this round

	emittedEvidence map[string]struct{} // evidence pairs already submitted this process
	heightStart     time.Time           // wall clock at height start, for telemetry

	Inbox      chan *Envelope // network messages routed to the engine
	PhaseTimer *time.Timer    // the single timer stepping the state machine
	quit       chan struct{}  // closed to stop the engine loop
	done       chan struct{}  // closed by the loop on exit

	con     Controller   // host callbacks
	config  lib.Config   // node configuration
	metrics *lib.Metrics // telemetry
	log     lib.LoggerI  // logging
}

// New() creates a consensus engine for one validator
func New(c lib.Config, valKey crypto.PrivateKeyI, con Controller, m *lib.Metrics, l lib.LoggerI) *BFT {
	return &BFT{
		privateKey:      valKey,
		publicKey:       valKey.PublicKey(),
		address:         valKey.PublicKey().Address().String(),
		chainId:         c.ChainId,
		blockCache:      make(map[string]*lib.Block),
		prevotes:        NewVoteBox(c.ChainId),
		precommits:      NewVoteBox(c.ChainId),
		commits:         NewVoteBox(c.ChainId),
		emittedEvidence: make(map[string]struct{}),
		Inbox:           make(chan *Envelope, 1000),
		PhaseTimer:      lib.NewTimer(),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
		con:             con,
		config:          c,
		metrics:         m,
		log:             l,
	}
}

// Start() runs the engine loop. Every event source lands here: the phase
// timer and the inbound network messages are serialized by the select, so no
// other synchronization exists or is needed
func (b *BFT) Start() {
	defer close(b.done)
	b.NewHeight()
	b.setTimer(time.Duration(b.config.NewHeightTimeoutMS)*time.Millisecond, 0)
	for {
		select {
		case <-b.PhaseTimer.C:
			b.HandlePhase()
		case env := <-b.Inbox:
			b.HandleMessage(env)
		case <-b.quit:
			return
		}
	}
}

// Stop() terminates the engine loop and waits for it to exit, so callers may
// safely tear down the resources the loop's handlers touch
func (b *BFT) Stop() {
	close(b.quit)
	<-b.done
}

// HandlePhase() is the main phase stepping switch
func (b *BFT) HandlePhase() {
	startTime := time.Now()
	if b.metrics != nil {
		defer func() { b.metrics.UpdateBFT(b.Height, b.Round, b.Phase) }()
	}
	switch b.Phase {
	case lib.PhasePropose:
		b.StartProposePhase()
		b.Phase = lib.PhasePrevote
		b.setTimer(b.phaseDelay(), time.Since(startTime))
	case lib.PhasePrevote:
		b.StartPrevotePhase()
		b.Phase = lib.PhasePrecommit
		b.setTimer(b.phaseDelay(), time.Since(startTime))
	case lib.PhasePrecommit:
		b.StartPrecommitPhase()
		b.Phase = lib.PhaseCommitDecision
		b.setTimer(b.phaseDelay(), time.Since(startTime))
	case lib.PhaseCommitDecision:
		if b.StartCommitDecisionPhase() {
			b.Phase = lib.PhaseCommit
			b.setTimer(0, 0)
		} else {
			b.NewRound()
			b.Phase = lib.PhasePropose
			b.setTimer(0, 0)
		}
	case lib.PhaseCommit:
		b.StartCommitPhase()
		b.Phase = lib.PhaseFinalize
		b.setTimer(time.Duration(b.config.CommitTimeMS)*time.Millisecond, time.Since(startTime))
	case lib.PhaseFinalize:
		if b.StartFinalizePhase() {
			b.NewHeight()
			b.Phase = lib.PhasePropose
			b.setTimer(time.Duration(b.config.NewHeightTimeoutMS)*time.Millisecond, 0)
		} else {
			// keep gathering laggard commits and retally
			b.setTimer(time.Duration(b.config.DeltaMS)*time.Millisecond, time.Since(startTime))
		}
	}
}

// StartProposePhase() begins a round: if self is the expected proposer, offer
// either the locked block (with its proof-of-lock) or a fresh block built
// from the transaction pool
func (b *BFT) StartProposePhase() {
	b.log.Info(b.View.ToString())
	if b.proposer != b.address {
		return
	}
	var proposal *lib.Proposal
	if b.lockedBlock != nil {
		// re-propose the lock with the prevotes that justified it
		proposal = lib.NewProposal(b.privateKey, b.View.Copy(), b.lockedBlock, b.lockedProof, b.chainId)
		b.log.Infof("Re-proposing locked block %s", lib.BytesToTruncatedString(b.lockedBlock.Hash()))
	} else {
		block, err := b.con.ProduceBlock(b.Height, b.publicKey.Address().Bytes())
		if err != nil {
			b.log.Errorf("block production failed: %s", err.Error())
			return
		}
		proposal = lib.NewProposal(b.privateKey, b.View.Copy(), block, nil, b.chainId)
		b.log.Infof("Proposing block %s with %d txs", lib.BytesToTruncatedString(block.Hash()), block.Header.NumTxs)
	}
	if b.metrics != nil {
		b.metrics.ProposerCount.Inc()
	}
	// file own proposal directly; the switchboard delivers to everyone else
	b.proposals = append(b.proposals, proposal)
	b.blockCache[hex.EncodeToString(proposal.BlockHash)] = proposal.Block
	b.con.Broadcast(lib.ChannelProposal, lib.MustMarshal(proposal))
}

// StartPrevotePhase() casts the prevote of the round: the locked block if one
// exists, the unique valid proposal otherwise, or NIL when the proposer was
// silent or spoke twice
func (b *BFT) StartPrevotePhase() {
	b.log.Info(b.View.ToString())
	var target []byte
	switch {
	case b.lockedBlock != nil:
		target = b.lockedBlock.Hash()
	case len(b.proposals) == 1:
		target = b.proposals[0].BlockHash
	case len(b.proposals) > 1:
		// the proposer equivocated; surface the proof and vote NIL
		b.log.Warnf("Conflicting proposals from %s", lib.BytesToTruncatedString(b.proposals[0].From))
		b.submitEvidence(NewProposalEvidence(b.proposals[0], b.proposals[1]))
	}
	vote := lib.NewVote(b.privateKey, b.View.Copy(), lib.VoteTypePrevote, target, b.chainId)
	b.recordOwnVote(vote)
	b.con.Broadcast(lib.ChannelPrevote, lib.MustMarshal(vote))
	// the proposal buffer served its purpose for this round
	b.proposals = nil
}

// StartPrecommitPhase() tallies the prevotes: +2/3 for a block locks it and
// broadcasts a precommit; +2/3 NIL releases any lock and broadcasts nothing
func (b *BFT) StartPrecommitPhase() {
	b.log.Info(b.View.ToString())
	result := CountVotes(b.prevotes, b.commits, b.stake, &b.View)
	switch {
	case result.Found && !result.IsNil:
		block, known := b.blockCache[hex.EncodeToString(result.BlockHash)]
		if !known {
			// a quorum exists for a block this node never received; nothing to
			// lock on, catch-up is the sync layer's job
			b.log.Warnf("+2/3 prevotes for unknown block %s", lib.BytesToTruncatedString(result.BlockHash))
			return
		}
		b.lockedBlock = block
		b.lockedProof = b.prevotes.VotesFor(result.BlockHash)
		b.log.Infof("Locked on block %s (%d power)", lib.BytesToTruncatedString(result.BlockHash), result.Power)
		vote := lib.NewVote(b.privateKey, b.View.Copy(), lib.VoteTypePrecommit, result.BlockHash, b.chainId)
		b.recordOwnVote(vote)
		b.con.Broadcast(lib.ChannelPrecommit, lib.MustMarshal(vote))
	case result.Found && result.IsNil:
		if b.lockedBlock != nil {
			b.log.Info("+2/3 NIL prevotes, releasing lock")
		}
		b.lockedBlock, b.lockedProof = nil, nil
	}
}

// StartCommitDecisionPhase() tallies the precommits; returns true when a
// block achieved +2/3 and the round may commit
func (b *BFT) StartCommitDecisionPhase() bool {
	b.log.Info(b.View.ToString())
	result := CountVotes(b.precommits, b.commits, b.stake, &b.View)
	if !result.Found || result.IsNil {
		b.log.Infof("%s: no commit quorum, moving to round %d", lib.ChannelNewRound, b.Round+1)
		return false
	}
	block, known := b.blockCache[hex.EncodeToString(result.BlockHash)]
	if !known {
		b.log.Warnf("+2/3 precommits for unknown block %s", lib.BytesToTruncatedString(result.BlockHash))
		return false
	}
	b.nextBlock = block
	return true
}

// StartCommitPhase() broadcasts the commit ballot for the decided block
func (b *BFT) StartCommitPhase() {
	b.log.Info(b.View.ToString())
	vote := lib.NewVote(b.privateKey, b.View.Copy(), lib.VoteTypeCommit, b.nextBlock.Hash(), b.chainId)
	b.recordOwnVote(vote)
	b.con.Broadcast(lib.ChannelCommit, lib.MustMarshal(vote))
}

// StartFinalizePhase() tallies the commits; on +2/3 the decided block is
// installed as the new head and the engine reports success
func (b *BFT) StartFinalizePhase() bool {
	b.log.Info(b.View.ToString())
	result := CountVotes(b.commits, nil, b.stake, &b.View)
	if !result.Found || result.IsNil {
		return false
	}
	block, known := b.blockCache[hex.EncodeToString(result.BlockHash)]
	if !known {
		return false
	}
	if b.nextBlock != nil && !bytes.Equal(result.BlockHash, b.nextBlock.Hash()) {
		b.log.Warnf("commit quorum diverged from own decision, following the quorum")
	}
	if err := b.con.CommitBlock(block); err != nil {
		b.log.Errorf("commit failed: %s", err.Error())
		return false
	}
	if b.metrics != nil {
		b.metrics.ObserveCommit(b.heightStart)
	}
	b.log.Infof("Committed block %s at height %d (round %d)", lib.BytesToTruncatedString(result.BlockHash), b.Height, b.Round)
	return true
}

// NewHeight() resets all per-height state and begins the next height at round one
func (b *BFT) NewHeight() {
	head := b.con.HeadLedger()
	b.Height = head.Height() + 1
	b.Round = 0
	b.roundPower = head.AccumPowerCopy()
	b.stake = head.StakeCopy()
	b.blockCache = make(map[string]*lib.Block)
	b.futureProposals = make(map[uint64][]*lib.Proposal)
	b.commits = NewVoteBox(b.chainId)
	b.lockedBlock, b.lockedProof, b.nextBlock = nil, nil, nil
	b.heightStart = time.Now()
	b.NewRound()
	// replay what peers sent while they were a height ahead
	buffered := b.nextHeight
	b.nextHeight = nil
	for _, env := range buffered {
		b.HandleMessage(env)
	}
}

// NewRound() clears the per-round state, rotates the round-local power
// accumulator, and selects the proposer of the new round. Commit ballots are
// deliberately preserved
func (b *BFT) NewRound() {
	b.Round++
	b.Phase = lib.PhasePropose
	b.proposals = nil
	b.prevotes = NewVoteBox(b.chainId)
	b.precommits = NewVoteBox(b.chainId)
	b.nextBlock = nil
	proposer, err := SelectProposer(b.roundPower, b.stake)
	if err != nil {
		b.log.Fatal(err.Error())
	}
	b.proposer = proposer
	if proposer == b.address {
		b.log.Infof("Round %d proposer: %s (self)", b.Round, proposer[:10])
	} else {
		b.log.Infof("Round %d proposer: %s", b.Round, proposer[:10])
	}
	// replay the proposals that arrived before this round began
	buffered := b.futureProposals[b.Round]
	delete(b.futureProposals, b.Round)
	for _, p := range buffered {
		b.HandleProposal(p)
	}
}

// HandleMessage() routes an inbound envelope by channel. Messages for the
// next height are held and replayed once this node commits the current one;
// peers that finalized a moment earlier must not outrun it for good
func (b *BFT) HandleMessage(env *Envelope) {
	switch env.Channel {
	case lib.ChannelProposal:
		p := new(lib.Proposal)
		if err := lib.Unmarshal(env.Payload, p); err != nil {
			b.log.Warnf("undecodable proposal: %s", err.Error())
			return
		}
		if p.Height == b.Height+1 {
			b.bufferNextHeight(env)
			return
		}
		b.HandleProposal(p)
	case lib.ChannelPrevote, lib.ChannelPrecommit, lib.ChannelCommit:
		v := new(lib.Vote)
		if err := lib.Unmarshal(env.Payload, v); err != nil {
			b.log.Warnf("undecodable vote: %s", err.Error())
			return
		}
		if v.Height == b.Height+1 {
			b.bufferNextHeight(env)
			return
		}
		b.HandleVote(v)
	default:
		b.log.Warn(lib.ErrUnknownChannel(env.Channel).Error())
	}
}

// bufferNextHeight() holds a one-height-ahead message for replay
func (b *BFT) bufferNextHeight(env *Envelope) {
	if len(b.nextHeight) < maxBufferedNextHeight {
		b.nextHeight = append(b.nextHeight, env)
	}
}

// HandleProposal() validates an inbound proposal and files it for the prevote
// step. The block is replayed against the head ledger before it is cached.
// Proposals for later rounds of this height are buffered until their round
// starts; a peer mid-step behind the proposer would otherwise lose them
func (b *BFT) HandleProposal(p *lib.Proposal) {
	if p.Height == b.Height && p.Round > b.Round {
		if len(b.futureProposals[p.Round]) < maxBufferedProposals {
			b.futureProposals[p.Round] = append(b.futureProposals[p.Round], p)
		}
		return
	}
	if p.Height != b.Height || p.Round != b.Round {
		if p.Height < b.Height || (p.Height == b.Height && p.Round < b.Round) {
			b.log.Debugf("stale proposal for (H:%d, R:%d)", p.Height, p.Round)
		}
		return
	}
	if err := p.CheckBasic(b.chainId); err != nil {
		b.log.Warnf("invalid proposal: %s", err.Error())
		return
	}
	if hex.EncodeToString(p.From) != b.proposer {
		b.log.Warn(lib.ErrWrongProposer().Error())
		return
	}
	if err := b.verifyProofOfLock(p); err != nil {
		b.log.Warnf("invalid proof-of-lock: %s", err.Error())
		return
	}
	if err := b.con.ValidateBlock(p.Block); err != nil {
		b.log.Warnf("proposal block does not replay: %s", err.Error())
		return
	}
	// a re-delivery of the same block is not a second proposal
	for _, existing := range b.proposals {
		if bytes.Equal(existing.BlockHash, p.BlockHash) {
			return
		}
	}
	// a second valid proposal from the proposer stays filed so the prevote
	// step can surface the equivocation
	b.proposals = append(b.proposals, p)
	b.blockCache[hex.EncodeToString(p.BlockHash)] = p.Block
}

// HandleVote() validates an inbound ballot and files it in the box of its
// type. Equivocation surfaces here as an evidence transaction
func (b *BFT) HandleVote(v *lib.Vote) {
	if v.Height != b.Height {
		if v.Height < b.Height {
			b.log.Debugf("stale vote for height %d", v.Height)
		}
		return
	}
	if v.Stale(&b.View) {
		b.log.Debug(lib.ErrStaleMessage().Error())
		return
	}
	if err := v.CheckBasic(b.chainId); err != nil {
		b.log.Warnf("invalid vote: %s", err.Error())
		return
	}
	if _, bonded := b.stake[hex.EncodeToString(v.From)]; !bonded {
		b.log.Debugf("vote from unbonded address %s", lib.BytesToTruncatedString(v.From))
		return
	}
	var box *VoteBox
	switch v.Type {
	case lib.VoteTypePrevote:
		box = b.prevotes
	case lib.VoteTypePrecommit:
		box = b.precommits
	case lib.VoteTypeCommit:
		box = b.commits
	}
	if _, conflict, err := box.Record(v); err != nil {
		if conflict != nil {
			b.log.Warnf("equivocation by %s at %s", lib.BytesToTruncatedString(v.From), b.View.ToString())
			b.submitEvidence(NewVoteEvidence(conflict, v))
			return
		}
		b.log.Debug(err.Error())
	}
}

// recordOwnVote() files the validator's own ballot without a network round trip
func (b *BFT) recordOwnVote(v *lib.Vote) {
	var box *VoteBox
	switch v.Type {
	case lib.VoteTypePrevote:
		box = b.prevotes
	case lib.VoteTypePrecommit:
		box = b.precommits
	case lib.VoteTypeCommit:
		box = b.commits
	}
	if _, _, err := box.Record(v); err != nil {
		b.log.Debug(err.Error())
	}
}

// submitEvidence() forwards an evidence payload to the host exactly once per
// conflicting pair
func (b *BFT) submitEvidence(m *fsm.MessageEvidence) {
	var idA, idB []byte
	if m.VoteA != nil {
		idA, idB = m.VoteA.ID(b.chainId), m.VoteB.ID(b.chainId)
	} else {
		idA, idB = m.ProposalA.ID(b.chainId), m.ProposalB.ID(b.chainId)
	}
	pair := fsm.PairKey(idA, idB)
	if _, seen := b.emittedEvidence[pair]; seen {
		return
	}
	b.emittedEvidence[pair] = struct{}{}
	b.con.SubmitEvidence(m)
}

// verifyProofOfLock() checks that an attached proof-of-lock is a set of valid
// prevotes for the proposed block from an earlier round of this height whose
// stake strictly exceeds two thirds
func (b *BFT) verifyProofOfLock(p *lib.Proposal) lib.ErrorI {
	if len(p.ProofOfLock) == 0 {
		return nil
	}
	totalStake, votedPower := uint64(0), uint64(0)
	for _, s := range b.stake {
		totalStake += s
	}
	seen := make(map[string]struct{}, len(p.ProofOfLock))
	for _, v := range p.ProofOfLock {
		if err := v.CheckBasic(b.chainId); err != nil {
			return err
		}
		if v.Type != lib.VoteTypePrevote || v.Height != p.Height || v.Round >= p.Round {
			return lib.ErrInvalidProposal("proof-of-lock vote outside the locking round")
		}
		if !bytes.Equal(v.BlockHash, p.BlockHash) {
			return lib.ErrInvalidProposal("proof-of-lock vote for a different block")
		}
		voter := hex.EncodeToString(v.From)
		if _, dup := seen[voter]; dup {
			return lib.ErrDuplicateVote()
		}
		seen[voter] = struct{}{}
		votedPower += b.stake[voter]
	}
	if votedPower <= 2*totalStake/3 {
		return lib.ErrNoMaj23()
	}
	return nil
}

// phaseDelay() returns the current phase timeout: round x delta, the linear
// backoff restoring liveness under asynchrony
func (b *BFT) phaseDelay() time.Duration {
	return time.Duration(b.Round) * time.Duration(b.config.DeltaMS) * time.Millisecond
}

// setTimer() arms the phase timer for the next step, net of processing time
func (b *BFT) setTimer(d time.Duration, processTime time.Duration) {
	if d > processTime {
		d -= processTime
	} else if d > 0 {
		d = 0
	}
	lib.ResetTimer(b.PhaseTimer, d)
}
