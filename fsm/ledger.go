package fsm

import (
	"sort"

	"github.com/auric-network/auric/lib"
	"github.com/auric-network/auric/lib/crypto"
)

/*
	This file implements the staking ledger: the bonded balances, the delayed
	unbonding queue, and the accumulated proposer power of every height. Each
	block owns its own ledger snapshot, copy-on-write from the parent; once the
	block commits, its snapshot becomes authoritative for the next height.

	Gold accounting model: `balances` is total gold owned per address and
	`stakeBalances` is a lien on it. Bonding never moves gold, it locks it;
	available (liquid) gold is balances minus the bonded lien. Scheduled
	unbonds stay bonded, count for voting power, and remain at risk of
	slashing until the release height drains them from the queue
*/

// UnstakingEvent is a pending stake release scheduled for a future height
type UnstakingEvent struct {
	Address string `json:"address"` // the unbonding validator (hex)
	Amount  uint64 `json:"amount"`  // the amount released when the event matures
}

// StakeLedger holds the stake state of a single height
type StakeLedger struct {
	chainId      string
	height       uint64
	unstakeDelay uint64

	balances      map[string]uint64            // address (hex) -> total gold owned
	stakeBalances map[string]uint64            // address (hex) -> bonded gold
	unstaking     map[uint64][]*UnstakingEvent // release height -> ordered pending releases
	accumPower    map[string]int64             // address (hex) -> accumulated proposer priority
	slashedPairs  map[string]struct{}          // unordered evidence-pair ids already slashed
}

// NewStakeLedger() creates an empty ledger at height 0
func NewStakeLedger(chainId string, unstakeDelay uint64) *StakeLedger {
	return &StakeLedger{
		chainId:       chainId,
		unstakeDelay:  unstakeDelay,
		balances:      make(map[string]uint64),
		stakeBalances: make(map[string]uint64),
		unstaking:     make(map[uint64][]*UnstakingEvent),
		accumPower:    make(map[string]int64),
		slashedPairs:  make(map[string]struct{}),
	}
}

// Height() returns the height this snapshot belongs to
func (s *StakeLedger) Height() uint64 { return s.height }

// ChainId() returns the chain identifier the ledger validates signatures against
func (s *StakeLedger) ChainId() string { return s.chainId }

// Copy() deep-copies the ledger
func (s *StakeLedger) Copy() *StakeLedger {
	c := &StakeLedger{
		chainId:       s.chainId,
		height:        s.height,
		unstakeDelay:  s.unstakeDelay,
		balances:      make(map[string]uint64, len(s.balances)),
		stakeBalances: make(map[string]uint64, len(s.stakeBalances)),
		unstaking:     make(map[uint64][]*UnstakingEvent, len(s.unstaking)),
		accumPower:    make(map[string]int64, len(s.accumPower)),
		slashedPairs:  make(map[string]struct{}, len(s.slashedPairs)),
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.stakeBalances {
		c.stakeBalances[k] = v
	}
	for h, events := range s.unstaking {
		copied := make([]*UnstakingEvent, len(events))
		for i, e := range events {
			ev := *e
			copied[i] = &ev
		}
		c.unstaking[h] = copied
	}
	for k, v := range s.accumPower {
		c.accumPower[k] = v
	}
	for k := range s.slashedPairs {
		c.slashedPairs[k] = struct{}{}
	}
	return c
}

// Child() clones the ledger for the next height and drains the unbonding
// queue entries that mature at it
func (s *StakeLedger) Child(newHeight uint64) *StakeLedger {
	c := s.Copy()
	c.height = newHeight
	c.advance()
	return c
}

// advance() releases every unbond scheduled for the current height. A release
// whose address is no longer bonded (slashed between scheduling and maturity)
// is silently skipped
func (s *StakeLedger) advance() {
	events, ok := s.unstaking[s.height]
	if !ok {
		return
	}
	for _, e := range events {
		bonded, isValidator := s.stakeBalances[e.Address]
		if !isValidator {
			continue
		}
		remaining := bonded - e.Amount
		if remaining == 0 {
			// fully unbonded validators leave the set and the proposer rotation
			delete(s.stakeBalances, e.Address)
			delete(s.accumPower, e.Address)
		} else {
			s.stakeBalances[e.Address] = remaining
		}
	}
	delete(s.unstaking, s.height)
}

// Stake() bonds gold under an address. The gold stays in the owner's balance;
// only the lien grows
func (s *StakeLedger) Stake(addr string, amount uint64) lib.ErrorI {
	if amount == 0 {
		return lib.ErrInvalidAmount()
	}
	if s.AvailableGold(addr) < amount {
		return lib.ErrInsufficientFunds()
	}
	s.stakeBalances[addr] += amount
	return nil
}

// Unstake() schedules a release of bonded gold at height + unstakeDelay. The
// gold remains bonded (and slashable) until the event matures
func (s *StakeLedger) Unstake(addr string, amount uint64) lib.ErrorI {
	if amount == 0 {
		return lib.ErrInvalidAmount()
	}
	if s.pendingUnstake(addr)+amount > s.stakeBalances[addr] {
		return lib.ErrInsufficientStake()
	}
	releaseHeight := s.height + s.unstakeDelay
	s.unstaking[releaseHeight] = append(s.unstaking[releaseHeight], &UnstakingEvent{
		Address: addr,
		Amount:  amount,
	})
	return nil
}

// pendingUnstake() sums the not-yet-matured releases scheduled for an address
func (s *StakeLedger) pendingUnstake(addr string) (total uint64) {
	for _, events := range s.unstaking {
		for _, e := range events {
			if e.Address == addr {
				total += e.Amount
			}
		}
	}
	return
}

// Slash() ejects a proven Byzantine validator: its entire bond is seized, its
// accumulated power and pending releases are erased, the seized gold leaves its
// balance, and the seizure is redistributed to the remaining validators in
// proportion to their bonded stake. Truncation residue is burned
func (s *StakeLedger) Slash(cheater string) lib.ErrorI {
	seized, ok := s.stakeBalances[cheater]
	if !ok {
		return lib.ErrUnknownValidator()
	}
	delete(s.stakeBalances, cheater)
	delete(s.accumPower, cheater)
	// erase any scheduled releases so the seized bond can never mature
	for h, events := range s.unstaking {
		kept := events[:0]
		for _, e := range events {
			if e.Address != cheater {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(s.unstaking, h)
		} else {
			s.unstaking[h] = kept
		}
	}
	// the seized gold leaves the cheater's ownership
	if s.balances[cheater] >= seized {
		s.balances[cheater] -= seized
	} else {
		s.balances[cheater] = 0
	}
	// proportional redistribution, floor semantics, residue burned
	totalRemaining := s.TotalStake()
	if totalRemaining == 0 {
		return nil
	}
	for _, addr := range s.Validators() {
		share := seized * s.stakeBalances[addr] / totalRemaining
		s.stakeBalances[addr] += share
		s.balances[addr] += share
	}
	return nil
}

// UpdateAccumPower() advances the proposer rotation for one committed block:
// every bonded validator gains its stake in priority and the chosen proposer
// pays the total bonded stake back. The sum over all validators is unchanged
func (s *StakeLedger) UpdateAccumPower(proposer string) lib.ErrorI {
	if _, ok := s.stakeBalances[proposer]; !ok {
		return lib.ErrUnknownValidator()
	}
	total := s.TotalStake()
	for addr, stake := range s.stakeBalances {
		s.accumPower[addr] += int64(stake)
	}
	s.accumPower[proposer] -= int64(total)
	return nil
}

// TotalStake() returns the total bonded gold at this height
func (s *StakeLedger) TotalStake() (total uint64) {
	for _, stake := range s.stakeBalances {
		total += stake
	}
	return
}

// StakeOf() returns the bonded gold of an address
func (s *StakeLedger) StakeOf(addr string) uint64 { return s.stakeBalances[addr] }

// GoldOf() returns the total gold owned by an address
func (s *StakeLedger) GoldOf(addr string) uint64 { return s.balances[addr] }

// AvailableGold() returns the gold an address may spend or bond: ownership
// minus the bonded lien
func (s *StakeLedger) AvailableGold(addr string) uint64 {
	return s.balances[addr] - s.stakeBalances[addr]
}

// IsBonded() returns true if the address is currently a validator
func (s *StakeLedger) IsBonded(addr string) bool {
	_, ok := s.stakeBalances[addr]
	return ok
}

// Validators() returns the bonded addresses in lexicographic order
func (s *StakeLedger) Validators() []string {
	addrs := make([]string, 0, len(s.stakeBalances))
	for addr := range s.stakeBalances {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// AccumPowerCopy() returns a copy of the accumulated power map for the
// engine's round-local rotation
func (s *StakeLedger) AccumPowerCopy() map[string]int64 {
	c := make(map[string]int64, len(s.accumPower))
	for k, v := range s.accumPower {
		c[k] = v
	}
	return c
}

// StakeCopy() returns a copy of the bonded balances for the engine's
// round-local rotation
func (s *StakeLedger) StakeCopy() map[string]uint64 {
	c := make(map[string]uint64, len(s.stakeBalances))
	for k, v := range s.stakeBalances {
		c[k] = v
	}
	return c
}

// UnstakingAt() returns the pending releases scheduled for a height
func (s *StakeLedger) UnstakingAt(height uint64) []*UnstakingEvent {
	return s.unstaking[height]
}

// AccumPowerOf() returns the accumulated proposer priority of an address
func (s *StakeLedger) AccumPowerOf(addr string) int64 { return s.accumPower[addr] }

// Send() moves available gold between accounts
func (s *StakeLedger) Send(from, to string, amount uint64) lib.ErrorI {
	if amount == 0 {
		return lib.ErrInvalidAmount()
	}
	if s.AvailableGold(from) < amount {
		return lib.ErrInsufficientFunds()
	}
	s.balances[from] -= amount
	s.balances[to] += amount
	return nil
}

// LedgerState is the deterministic, wire-encodable projection of the ledger;
// map iteration order is erased by sorting every section
type LedgerState struct {
	Height        uint64
	Balances      []BalanceEntry
	StakeBalances []BalanceEntry
	Unstaking     []UnstakingQueueEntry
	AccumPower    []PowerEntry
	SlashedPairs  []string
}

type BalanceEntry struct {
	Address string
	Amount  uint64
}

type PowerEntry struct {
	Address string
	Power   int64
}

type UnstakingQueueEntry struct {
	Height uint64
	Events []*UnstakingEvent
}

// canonicalize() projects the ledger into its deterministic form
func (s *StakeLedger) canonicalize() *LedgerState {
	c := &LedgerState{Height: s.height}
	for _, addr := range sortedKeys(s.balances) {
		c.Balances = append(c.Balances, BalanceEntry{addr, s.balances[addr]})
	}
	for _, addr := range sortedKeys(s.stakeBalances) {
		c.StakeBalances = append(c.StakeBalances, BalanceEntry{addr, s.stakeBalances[addr]})
	}
	heights := make([]uint64, 0, len(s.unstaking))
	for h := range s.unstaking {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	for _, h := range heights {
		c.Unstaking = append(c.Unstaking, UnstakingQueueEntry{h, s.unstaking[h]})
	}
	for _, addr := range sortedKeysInt64(s.accumPower) {
		c.AccumPower = append(c.AccumPower, PowerEntry{addr, s.accumPower[addr]})
	}
	for pair := range s.slashedPairs {
		c.SlashedPairs = append(c.SlashedPairs, pair)
	}
	sort.Strings(c.SlashedPairs)
	return c
}

// Root() returns the digest committing to the full ledger state
func (s *StakeLedger) Root() []byte {
	return crypto.Hash(lib.MustMarshal(s.canonicalize()))
}

// Marshal() encodes the ledger for the block store
func (s *StakeLedger) Marshal() ([]byte, lib.ErrorI) {
	return lib.Marshal(s.canonicalize())
}

// UnmarshalLedger() decodes a stored ledger snapshot
func UnmarshalLedger(bz []byte, chainId string, unstakeDelay uint64) (*StakeLedger, lib.ErrorI) {
	c := new(LedgerState)
	if err := lib.Unmarshal(bz, c); err != nil {
		return nil, err
	}
	s := NewStakeLedger(chainId, unstakeDelay)
	s.height = c.Height
	for _, e := range c.Balances {
		s.balances[e.Address] = e.Amount
	}
	for _, e := range c.StakeBalances {
		s.stakeBalances[e.Address] = e.Amount
	}
	for _, e := range c.Unstaking {
		s.unstaking[e.Height] = e.Events
	}
	for _, e := range c.AccumPower {
		s.accumPower[e.Address] = e.Power
	}
	for _, pair := range c.SlashedPairs {
		s.slashedPairs[pair] = struct{}{}
	}
	return s, nil
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysInt64(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	lib.RegisterConcrete(&LedgerState{}, "fsm/LedgerState")
	lib.RegisterConcrete(&UnstakingEvent{}, "fsm/UnstakingEvent")
}
