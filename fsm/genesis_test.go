package fsm

import (
	"testing"

	"github.com/auric-network/auric/lib"
	"github.com/stretchr/testify/require"
)

func TestNewGenesisLedger(t *testing.T) {
	tests := []struct {
		name    string
		detail  string
		genesis *lib.GenesisFile
		error   lib.ErrorCode
	}{
		{
			name:   "stake by address",
			detail: "every listed validator starts with power equal to its bond",
			genesis: &lib.GenesisFile{
				ChainId:       testChainId,
				Balances:      map[string]uint64{"aa": 1000, "bb": 1000},
				StartingStake: map[string]uint64{"aa": 100, "bb": 400},
			},
		},
		{
			name:   "stake by handle",
			detail: "handle listed stake resolves through the handle table",
			genesis: &lib.GenesisFile{
				ChainId:          testChainId,
				StartingStakeMap: map[string]uint64{"alice": 100, "bob": 400},
				Handles:          map[string]string{"alice": "aa", "bob": "bb"},
			},
		},
		{
			name:   "both listings",
			detail: "exactly one stake listing may be present",
			genesis: &lib.GenesisFile{
				ChainId:          testChainId,
				StartingStake:    map[string]uint64{"aa": 100},
				StartingStakeMap: map[string]uint64{"alice": 100},
				Handles:          map[string]string{"alice": "aa"},
			},
			error: lib.CodeGenesisStakeOpts,
		},
		{
			name:    "neither listing",
			detail:  "a chain with no bonded validators cannot start",
			genesis: &lib.GenesisFile{ChainId: testChainId},
			error:   lib.CodeGenesisStakeOpts,
		},
		{
			name:   "unresolvable handle",
			detail: "handle listed stake requires a handle table entry",
			genesis: &lib.GenesisFile{
				ChainId:          testChainId,
				StartingStakeMap: map[string]uint64{"alice": 100},
			},
			error: lib.CodeInvalidAddress,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ledger, err := NewGenesisLedger(test.genesis, 35)
			if test.error != 0 {
				require.Error(t, err, test.detail)
				require.Equal(t, test.error, err.Code(), test.detail)
				return
			}
			require.NoError(t, err, test.detail)
			require.EqualValues(t, 100, ledger.StakeOf("aa"), test.detail)
			require.EqualValues(t, 400, ledger.StakeOf("bb"), test.detail)
			require.EqualValues(t, 100, ledger.AccumPowerOf("aa"), test.detail)
			require.EqualValues(t, 400, ledger.AccumPowerOf("bb"), test.detail)
			// the bond is always backed by owned gold
			require.GreaterOrEqual(t, ledger.GoldOf("bb"), ledger.StakeOf("bb"), test.detail)
		})
	}
}
