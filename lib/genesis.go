package lib

import (
	"encoding/json"
	"os"
)

/*
	This file implements the genesis document: the gold balances and the
	initial bonded stake of the chain, which is a lien on those balances. Stake may be listed by address or by
	client handle, never both
*/

// GenesisFile is the JSON document that seeds the chain at height 0
type GenesisFile struct {
	ChainId          string            `json:"chainId"`                    // the chain identifier mixed into every sign-bytes payload
	Balances         map[string]uint64 `json:"balances"`                   // gold owned per address (hex), bonded stake included
	StartingStake    map[string]uint64 `json:"startingStake,omitempty"`    // bonded stake per address (hex)
	StartingStakeMap map[string]uint64 `json:"startingStakeMap,omitempty"` // bonded stake per client handle
	Handles          map[string]string `json:"handles,omitempty"`          // client handle -> address (hex)
}

// Check() validates the genesis document: exactly one stake listing must be
// present and handle-listed stake must resolve to a known address
func (g *GenesisFile) Check() ErrorI {
	hasByAddress, hasByHandle := len(g.StartingStake) != 0, len(g.StartingStakeMap) != 0
	if hasByAddress == hasByHandle {
		return ErrGenesisStakeOptions()
	}
	if hasByHandle {
		for handle := range g.StartingStakeMap {
			if _, ok := g.Handles[handle]; !ok {
				return ErrInvalidAddress()
			}
		}
	}
	return nil
}

// StakeByAddress() resolves the stake listing into an address (hex) -> amount map
func (g *GenesisFile) StakeByAddress() (map[string]uint64, ErrorI) {
	if err := g.Check(); err != nil {
		return nil, err
	}
	if len(g.StartingStake) != 0 {
		return g.StartingStake, nil
	}
	resolved := make(map[string]uint64, len(g.StartingStakeMap))
	for handle, amount := range g.StartingStakeMap {
		resolved[g.Handles[handle]] = amount
	}
	return resolved, nil
}

// NewGenesisFromFile() populates a GenesisFile object from a JSON file
func NewGenesisFromFile(filepath string) (*GenesisFile, ErrorI) {
	bz, err := os.ReadFile(filepath)
	if err != nil {
		return nil, ErrReadFile(err)
	}
	g := new(GenesisFile)
	if err = json.Unmarshal(bz, g); err != nil {
		return nil, ErrJSONUnmarshal(err)
	}
	if e := g.Check(); e != nil {
		return nil, e
	}
	return g, nil
}

// WriteToFile() saves the genesis document as JSON
func (g *GenesisFile) WriteToFile(filepath string) ErrorI {
	bz, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return ErrJSONMarshal(err)
	}
	if err = os.WriteFile(filepath, bz, os.ModePerm); err != nil {
		return ErrWriteFile(err)
	}
	return nil
}
