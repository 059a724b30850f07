package bft

import (
	"bytes"
	"encoding/hex"

	"github.com/auric-network/auric/lib"
)

/*
	VOTE TRACKING AND TALLYING:

	A VoteBox holds at most one current ballot per validator for a given vote
	type. Fresher ballots replace stale ones; two ballots from the same
	validator for the same (height, round, type) but different block hashes are
	equivocation and surface as evidence.

	Tallies are stake weighted with a strict two-thirds threshold. At most one
	block hash can clear the threshold, so the count is order independent
*/

// VoteBox is the per-type collection of current ballots, one per validator
type VoteBox struct {
	chainId string
	votes   map[string]*lib.Vote // voter address (hex) -> current ballot
}

// NewVoteBox() creates an empty ballot collection
func NewVoteBox(chainId string) *VoteBox {
	return &VoteBox{chainId: chainId, votes: make(map[string]*lib.Vote)}
}

// Record() files a ballot. The return reports whether the box changed and, if
// the ballot conflicts with one already filed, that filed ballot
func (v *VoteBox) Record(vote *lib.Vote) (recorded bool, conflict *lib.Vote, err lib.ErrorI) {
	voter := hex.EncodeToString(vote.From)
	existing, ok := v.votes[voter]
	if !ok {
		v.votes[voter] = vote
		return true, nil, nil
	}
	if vote.FresherThan(existing) {
		v.votes[voter] = vote
		return true, nil, nil
	}
	if existing.FresherThan(vote) {
		return false, nil, lib.ErrStaleMessage()
	}
	// same (height, round); same type is implied by the box
	if bytes.Equal(existing.ID(v.chainId), vote.ID(v.chainId)) {
		return false, nil, lib.ErrDuplicateVote()
	}
	if !bytes.Equal(existing.BlockHash, vote.BlockHash) {
		return false, existing, lib.ErrEquivocation()
	}
	return false, nil, lib.ErrDuplicateVote()
}

// VotesFor() returns every filed ballot backing a specific block hash
func (v *VoteBox) VotesFor(blockHash []byte) (votes []*lib.Vote) {
	for _, vote := range v.votes {
		if bytes.Equal(vote.BlockHash, blockHash) {
			votes = append(votes, vote)
		}
	}
	return
}

// Len() returns the number of filed ballots
func (v *VoteBox) Len() int { return len(v.votes) }

// TallyResult is the outcome of a stake weighted count
type TallyResult struct {
	Found     bool   // did any block hash strictly exceed the threshold?
	IsNil     bool   // was the winner the NIL sentinel?
	BlockHash []byte // the winning block hash when Found && !IsNil
	Power     uint64 // the stake behind the winner
}

// CountVotes() runs the stake weighted tally of a box against the bonded
// balances of the given ledger height. Ballots stale for the view are skipped.
// When a commit box is supplied, its ballots are carried over: a validator's
// prior-round commit counts in this tally in place of any ballot of its own,
// the rule that lets already-committed peers pull stragglers forward
func CountVotes(box *VoteBox, commits *VoteBox, stake map[string]uint64, view *lib.View) (result TallyResult) {
	totalStake := uint64(0)
	for _, s := range stake {
		totalStake += s
	}
	threshold := 2 * totalStake / 3
	// merge the carried-over commits with the box's current ballots
	merged := make(map[string]*lib.Vote, box.Len())
	for voter, vote := range box.votes {
		if vote.Stale(view) {
			continue
		}
		merged[voter] = vote
	}
	if commits != nil {
		for voter, vote := range commits.votes {
			if vote.Height != view.Height {
				continue
			}
			merged[voter] = vote
		}
	}
	// count stake per candidate hash; the NIL sentinel is keyed by the empty string
	candidates := make(map[string]uint64)
	for voter, vote := range merged {
		weight, bonded := stake[voter]
		if !bonded {
			continue
		}
		candidates[hex.EncodeToString(vote.BlockHash)] += weight
	}
	// at most one candidate can strictly exceed two thirds
	for candidate, power := range candidates {
		if power > threshold {
			if candidate == "" {
				return TallyResult{Found: true, IsNil: true, Power: power}
			}
			blockHash, _ := hex.DecodeString(candidate)
			return TallyResult{Found: true, BlockHash: blockHash, Power: power}
		}
	}
	return TallyResult{}
}
