package lib

import (
	"github.com/auric-network/auric/lib/crypto"
)

/*
	This file implements the transaction envelope. The payload is a tagged
	variant (stake, unstake, send, evidence) defined by the ledger package;
	the envelope carries the sender identity and authorizing signature
*/

// MessageI is a transaction payload; concrete variants register themselves
// with the codec and are routed by the ledger's exhaustive handler
type MessageI interface {
	Check() ErrorI // stateless sanity validation of the payload
	Name() string  // human readable payload name
}

// Transaction is a signed instruction from an account, carried in a block
type Transaction struct {
	From      []byte   `json:"from"`      // the sender address
	Nonce     uint64   `json:"nonce"`     // sender supplied entropy making identical instructions distinct
	Msg       MessageI `json:"msg"`       // the tagged payload
	PubKey    []byte   `json:"pubKey"`    // the public key that pairs with the From address
	Signature []byte   `json:"signature"` // the sender's signature over the sign bytes
}

// SignBytes() returns the canonical signature-less encoding of the transaction
func (t *Transaction) SignBytes(chainId string) []byte {
	canonical := &Transaction{
		From:   t.From,
		Nonce:  t.Nonce,
		Msg:    t.Msg,
		PubKey: t.PubKey,
	}
	return append([]byte(chainId), MustMarshal(canonical)...)
}

// ID() returns the identity of the transaction: the hash of everything but the signature
func (t *Transaction) ID(chainId string) []byte { return crypto.Hash(t.SignBytes(chainId)) }

// Sign() populates the signature using the private key
func (t *Transaction) Sign(pk crypto.PrivateKeyI, chainId string) {
	t.PubKey = pk.PublicKey().Bytes()
	t.From = pk.PublicKey().Address().Bytes()
	t.Signature = pk.Sign(t.SignBytes(chainId))
}

// Check() validates the envelope: payload sanity, key/address pairing, and signature
func (t *Transaction) Check(chainId string) ErrorI {
	if t.Msg == nil {
		return ErrUnknownTxType(nil)
	}
	if err := t.Msg.Check(); err != nil {
		return err
	}
	pub, err := crypto.NewPublicKeyFromBytes(t.PubKey)
	if err != nil {
		return ErrInvalidTxSignature()
	}
	if !pub.Address().Equals(crypto.NewAddressFromBytes(t.From)) {
		return ErrInvalidTxSignature()
	}
	if !pub.VerifyBytes(t.SignBytes(chainId), t.Signature) {
		return ErrInvalidTxSignature()
	}
	return nil
}

// NewTransaction() builds and signs a transaction envelope around a payload
func NewTransaction(pk crypto.PrivateKeyI, msg MessageI, nonce uint64, chainId string) *Transaction {
	tx := &Transaction{Nonce: nonce, Msg: msg}
	tx.Sign(pk, chainId)
	return tx
}
