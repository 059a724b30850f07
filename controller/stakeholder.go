package controller

import (
	"github.com/auric-network/auric/fsm"
	"github.com/auric-network/auric/lib"
)

/*
	This file implements the stakeholder capability: the client-facing staking
	surface composed into any role that owns gold. Submission failures are
	synchronous; a staking transaction that the sender cannot cover never
	reaches the network
*/

// StakeholderCapability is the staking surface of an account holder
type StakeholderCapability interface {
	// AvailableGold() returns the gold the holder may spend or bond
	AvailableGold() uint64
	// AmountGoldStaked() returns the holder's bonded gold
	AmountGoldStaked() uint64
	// PostStakingTransaction() bonds gold from the holder
	PostStakingTransaction(amount uint64) lib.ErrorI
	// PostUnstakingTransaction() schedules a release of the holder's bonded gold
	PostUnstakingTransaction(amount uint64) lib.ErrorI
	// PostSendTransaction() transfers available gold to another account
	PostSendTransaction(to []byte, amount uint64) lib.ErrorI
	// PostEvidenceTransaction() submits an equivocation proof
	PostEvidenceTransaction(m *fsm.MessageEvidence) lib.ErrorI
}

var _ StakeholderCapability = &Controller{}

// AvailableGold() returns the gold the validator may spend or bond at the head
func (c *Controller) AvailableGold() uint64 {
	return c.HeadLedger().AvailableGold(c.address.String())
}

// AmountGoldStaked() returns the validator's bonded gold at the head
func (c *Controller) AmountGoldStaked() uint64 {
	return c.HeadLedger().StakeOf(c.address.String())
}

// PostStakingTransaction() bonds gold from this node's account; fails
// synchronously if the available balance cannot cover the bond
func (c *Controller) PostStakingTransaction(amount uint64) lib.ErrorI {
	if amount == 0 {
		return lib.ErrInvalidAmount()
	}
	if c.AvailableGold() < amount {
		return lib.ErrInsufficientFunds()
	}
	return c.post(&fsm.MessageStake{Amount: amount})
}

// PostUnstakingTransaction() schedules a release of this node's bonded gold;
// fails synchronously if the bond cannot cover it
func (c *Controller) PostUnstakingTransaction(amount uint64) lib.ErrorI {
	if amount == 0 {
		return lib.ErrInvalidAmount()
	}
	if c.AmountGoldStaked() < amount {
		return lib.ErrInsufficientStake()
	}
	return c.post(&fsm.MessageUnstake{Amount: amount})
}

// PostSendTransaction() transfers available gold to another account
func (c *Controller) PostSendTransaction(to []byte, amount uint64) lib.ErrorI {
	if amount == 0 {
		return lib.ErrInvalidAmount()
	}
	if c.AvailableGold() < amount {
		return lib.ErrInsufficientFunds()
	}
	return c.post(&fsm.MessageSend{ToAddress: to, Amount: amount})
}

// PostEvidenceTransaction() submits an equivocation proof on behalf of a client
func (c *Controller) PostEvidenceTransaction(m *fsm.MessageEvidence) lib.ErrorI {
	if err := m.Check(); err != nil {
		return err
	}
	return c.post(m)
}

// post() signs, pools, and gossips a payload from this node's account
func (c *Controller) post(msg lib.MessageI) lib.ErrorI {
	tx := c.buildTransaction(msg)
	if err := c.HandleTransaction(tx); err != nil {
		return err
	}
	c.Broadcast(lib.ChannelTx, lib.MustMarshal(tx))
	return nil
}
