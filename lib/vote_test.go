package lib

import (
	"testing"

	"github.com/auric-network/auric/lib/crypto"
	"github.com/stretchr/testify/require"
)

const testChainId = "auric-test"

func testVoteKey(t *testing.T) crypto.PrivateKeyI {
	t.Helper()
	key, err := crypto.NewPrivateKey()
	require.NoError(t, err)
	return key
}

func TestVoteSignAndVerify(t *testing.T) {
	key := testVoteKey(t)
	v := NewVote(key, &View{Height: 3, Round: 2}, VoteTypePrevote, crypto.Hash([]byte("b")), testChainId)
	require.NoError(t, v.CheckBasic(testChainId))
	// the sender address must derive from the attached public key
	other := testVoteKey(t)
	v.From = other.PublicKey().Address().Bytes()
	err := v.CheckBasic(testChainId)
	require.Error(t, err)
	require.Equal(t, CodeInvalidPubKey, err.Code())
	// a flipped byte in the signature fails verification
	v = NewVote(key, &View{Height: 3, Round: 2}, VoteTypePrevote, crypto.Hash([]byte("b")), testChainId)
	v.Signature[0] ^= 0xFF
	err = v.CheckBasic(testChainId)
	require.Error(t, err)
	require.Equal(t, CodeInvalidSignature, err.Code())
	// a different chain id changes the sign bytes
	v = NewVote(key, &View{Height: 3, Round: 2}, VoteTypePrevote, crypto.Hash([]byte("b")), testChainId)
	require.Error(t, v.CheckBasic("other-chain"))
}

func TestVoteStaleness(t *testing.T) {
	key := testVoteKey(t)
	view := &View{Height: 5, Round: 3}
	tests := []struct {
		name   string
		detail string
		vote   *Vote
		stale  bool
	}{
		{
			name:   "earlier height",
			detail: "votes below the current height are always stale",
			vote:   NewVote(key, &View{Height: 4, Round: 9}, VoteTypePrevote, nil, testChainId),
			stale:  true,
		},
		{
			name:   "earlier round prevote",
			detail: "non-commit votes below the current round are stale",
			vote:   NewVote(key, &View{Height: 5, Round: 2}, VoteTypePrevote, nil, testChainId),
			stale:  true,
		},
		{
			name:   "earlier round commit",
			detail: "commits survive later rounds of the same height",
			vote:   NewVote(key, &View{Height: 5, Round: 1}, VoteTypeCommit, nil, testChainId),
		},
		{
			name:   "current round",
			detail: "the current round is never stale",
			vote:   NewVote(key, &View{Height: 5, Round: 3}, VoteTypePrecommit, nil, testChainId),
		},
		{
			name:   "later round",
			detail: "future rounds are ahead of the view, not behind it",
			vote:   NewVote(key, &View{Height: 5, Round: 4}, VoteTypePrevote, nil, testChainId),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.stale, test.vote.Stale(view), test.detail)
		})
	}
}

func TestVoteFreshness(t *testing.T) {
	key := testVoteKey(t)
	a := NewVote(key, &View{Height: 2, Round: 1}, VoteTypePrevote, nil, testChainId)
	b := NewVote(key, &View{Height: 1, Round: 9}, VoteTypePrevote, nil, testChainId)
	c := NewVote(key, &View{Height: 2, Round: 2}, VoteTypePrevote, nil, testChainId)
	// height dominates round, round breaks height ties
	require.True(t, a.FresherThan(b))
	require.False(t, b.FresherThan(a))
	require.True(t, c.FresherThan(a))
	require.False(t, a.FresherThan(a))
}

func TestVoteIdentity(t *testing.T) {
	key := testVoteKey(t)
	view := &View{Height: 1, Round: 1}
	a := NewVote(key, view, VoteTypePrevote, crypto.Hash([]byte("b")), testChainId)
	b := NewVote(key, view, VoteTypePrevote, crypto.Hash([]byte("b")), testChainId)
	c := NewVote(key, view, VoteTypePrevote, crypto.Hash([]byte("other")), testChainId)
	// identity covers every field but the signature
	require.Equal(t, a.ID(testChainId), b.ID(testChainId))
	require.NotEqual(t, a.ID(testChainId), c.ID(testChainId))
	require.True(t, a.Equivocates(c))
	require.False(t, a.Equivocates(b))
}

func TestVoteWireRoundTrip(t *testing.T) {
	key := testVoteKey(t)
	v := NewVote(key, &View{Height: 7, Round: 2}, VoteTypeCommit, crypto.Hash([]byte("b")), testChainId)
	bz := MustMarshal(v)
	decoded := new(Vote)
	require.NoError(t, Unmarshal(bz, decoded))
	require.NoError(t, decoded.CheckBasic(testChainId))
	require.Equal(t, v.ID(testChainId), decoded.ID(testChainId))
}

func TestProposalCheckBasic(t *testing.T) {
	key := testVoteKey(t)
	block := &Block{Header: &BlockHeader{Height: 1, TxRoot: TxRoot(nil)}}
	p := NewProposal(key, &View{Height: 1, Round: 1}, block, nil, testChainId)
	require.NoError(t, p.CheckBasic(testChainId))
	// the advertised hash must match the block
	p.BlockHash = crypto.Hash([]byte("other"))
	require.Error(t, p.CheckBasic(testChainId))
	// the block height must match the proposal height
	p = NewProposal(key, &View{Height: 2, Round: 1}, block, nil, testChainId)
	require.Error(t, p.CheckBasic(testChainId))
}
