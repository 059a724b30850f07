package lib

import (
	"fmt"
	"math"
)

/*
	This file implements the error taxonomy of the node: every fallible operation
	returns an ErrorI carrying a module and a code so that faults are attributable
	and machine comparable. Nothing in the consensus loop is fatal; callers log
	and continue with degraded liveness
*/

type ErrorI interface {
	Code() ErrorCode     // Returns the error code
	Module() ErrorModule // Returns the error module
	error                // Implements the built-in error interface
}

var _ ErrorI = &Error{} // Ensures *Error implements ErrorI

type ErrorCode uint32 // Defines a type for error codes

type ErrorModule string // Defines a type for error modules

type Error struct {
	ECode   ErrorCode   `json:"code"`   // Error code
	EModule ErrorModule `json:"module"` // Error module
	Msg     string      `json:"msg"`    // Error message
}

func NewError(code ErrorCode, module ErrorModule, msg string) *Error {
	return &Error{ECode: code, EModule: module, Msg: msg}
}

// Code() returns the associated error code
func (p *Error) Code() ErrorCode { return p.ECode }

// Module() returns module field
func (p *Error) Module() ErrorModule { return p.EModule }

// String() calls Error()
func (p *Error) String() string { return p.Error() }

// Error() returns a formatted string including module, code, and message
func (p *Error) Error() string {
	return fmt.Sprintf("\nModule:  %s\nCode:    %d\nMessage: %s", p.EModule, p.ECode, p.Msg)
}

const (
	NoCode ErrorCode = math.MaxUint32

	// Main Module
	MainModule ErrorModule = "main"

	// Main Module Error Codes
	CodeJSONMarshal      ErrorCode = 1
	CodeJSONUnmarshal    ErrorCode = 2
	CodeMarshal          ErrorCode = 3
	CodeUnmarshal        ErrorCode = 4
	CodeWriteFile        ErrorCode = 5
	CodeReadFile         ErrorCode = 6
	CodeWriteLog         ErrorCode = 7
	CodeInvalidAddress   ErrorCode = 8
	CodeGenesisStakeOpts ErrorCode = 10
	CodeGenesisEmpty     ErrorCode = 11
	CodeUnknownChannel   ErrorCode = 12

	// Consensus Module
	ConsensusModule ErrorModule = "consensus"

	// Consensus Module Error Codes
	CodeStaleMessage        ErrorCode = 1
	CodeInvalidSignature    ErrorCode = 2
	CodeDuplicateVote       ErrorCode = 3
	CodeEquivocation        ErrorCode = 4
	CodeInvalidPubKey       ErrorCode = 5
	CodeInvalidProposal     ErrorCode = 6
	CodeWrongProposer       ErrorCode = 7
	CodeNoMaj23             ErrorCode = 8
	CodeMissingParent       ErrorCode = 9
	CodeInvalidVotePhase    ErrorCode = 10
	CodeEmptyAccumulator    ErrorCode = 11
	CodeInvalidBlockHash    ErrorCode = 12

	// Ledger Module
	LedgerModule ErrorModule = "ledger"

	// Ledger Module Error Codes
	CodeInsufficientFunds  ErrorCode = 1
	CodeInsufficientStake  ErrorCode = 2
	CodeInvalidAmount      ErrorCode = 3
	CodeUnknownTxType      ErrorCode = 4
	CodeInvalidEvidence    ErrorCode = 5
	CodeDuplicateEvidence  ErrorCode = 6
	CodeUnknownValidator   ErrorCode = 7
	CodeInvalidTxSignature ErrorCode = 8
	CodeStateRootMismatch  ErrorCode = 9
	CodeInvalidBlockHeight ErrorCode = 10

	// Mempool Module
	MempoolModule ErrorModule = "mempool"

	// Mempool Module Error Codes
	CodeDuplicateTransaction ErrorCode = 1
	CodeMempoolFull          ErrorCode = 2
	CodeTxTooLarge           ErrorCode = 3

	// Store Module
	StoreModule ErrorModule = "store"

	// Store Module Error Codes
	CodeOpenDB        ErrorCode = 1
	CodeStoreSet      ErrorCode = 2
	CodeStoreGet      ErrorCode = 3
	CodeBlockNotFound ErrorCode = 5

	// RPC Module
	RPCModule ErrorModule = "rpc"

	// RPC Module Error Codes
	CodeRPCTimeout     ErrorCode = 1
	CodeRPCBadRequest  ErrorCode = 2
	CodeRPCServerDown  ErrorCode = 3
)

// main module errors

func ErrJSONMarshal(err error) ErrorI {
	return NewError(CodeJSONMarshal, MainModule, fmt.Sprintf("json marshal failed with err: %s", err.Error()))
}

func ErrJSONUnmarshal(err error) ErrorI {
	return NewError(CodeJSONUnmarshal, MainModule, fmt.Sprintf("json unmarshal failed with err: %s", err.Error()))
}

func ErrMarshal(err error) ErrorI {
	return NewError(CodeMarshal, MainModule, fmt.Sprintf("marshal failed with err: %s", err.Error()))
}

func ErrUnmarshal(err error) ErrorI {
	return NewError(CodeUnmarshal, MainModule, fmt.Sprintf("unmarshal failed with err: %s", err.Error()))
}

func ErrWriteFile(err error) ErrorI {
	return NewError(CodeWriteFile, MainModule, fmt.Sprintf("write file failed with err: %s", err.Error()))
}

func ErrReadFile(err error) ErrorI {
	return NewError(CodeReadFile, MainModule, fmt.Sprintf("read file failed with err: %s", err.Error()))
}

func ErrWriteLog(err error) ErrorI {
	return NewError(CodeWriteLog, MainModule, fmt.Sprintf("write log failed with err: %s", err.Error()))
}

func ErrInvalidAddress() ErrorI {
	return NewError(CodeInvalidAddress, MainModule, "address is invalid")
}

func ErrGenesisStakeOptions() ErrorI {
	return NewError(CodeGenesisStakeOpts, MainModule, "genesis must set exactly one of startingStake or startingStakeMap")
}

func ErrGenesisEmpty() ErrorI {
	return NewError(CodeGenesisEmpty, MainModule, "genesis has no bonded validators")
}

func ErrUnknownChannel(channel string) ErrorI {
	return NewError(CodeUnknownChannel, MainModule, fmt.Sprintf("unknown network channel: %s", channel))
}

// consensus module errors

func ErrStaleMessage() ErrorI {
	return NewError(CodeStaleMessage, ConsensusModule, "message is below the current height/round")
}

func ErrInvalidSignature() ErrorI {
	return NewError(CodeInvalidSignature, ConsensusModule, "the signature is invalid")
}

func ErrDuplicateVote() ErrorI {
	return NewError(CodeDuplicateVote, ConsensusModule, "the vote is a duplicate")
}

func ErrEquivocation() ErrorI {
	return NewError(CodeEquivocation, ConsensusModule, "conflicting signed messages from the same validator")
}

func ErrInvalidPubKey() ErrorI {
	return NewError(CodeInvalidPubKey, ConsensusModule, "the public key does not match the sender address")
}

func ErrInvalidProposal(reason string) ErrorI {
	return NewError(CodeInvalidProposal, ConsensusModule, fmt.Sprintf("the proposal is invalid: %s", reason))
}

func ErrWrongProposer() ErrorI {
	return NewError(CodeWrongProposer, ConsensusModule, "the proposal is not from the expected proposer")
}

func ErrNoMaj23() ErrorI {
	return NewError(CodeNoMaj23, ConsensusModule, "no +2/3 majority")
}

func ErrMissingParent() ErrorI {
	return NewError(CodeMissingParent, ConsensusModule, "the proposal references an unknown parent block")
}

func ErrInvalidVotePhase() ErrorI {
	return NewError(CodeInvalidVotePhase, ConsensusModule, "the vote phase is not prevote, precommit, or commit")
}

func ErrEmptyAccumulator() ErrorI {
	return NewError(CodeEmptyAccumulator, ConsensusModule, "the power accumulator has no validators")
}

func ErrInvalidBlockHash() ErrorI {
	return NewError(CodeInvalidBlockHash, ConsensusModule, "the block hash does not match the block")
}

// ledger module errors

func ErrInsufficientFunds() ErrorI {
	return NewError(CodeInsufficientFunds, LedgerModule, "insufficient gold for the operation")
}

func ErrInsufficientStake() ErrorI {
	return NewError(CodeInsufficientStake, LedgerModule, "insufficient bonded stake for the operation")
}

func ErrInvalidAmount() ErrorI {
	return NewError(CodeInvalidAmount, LedgerModule, "the amount must be positive")
}

func ErrUnknownTxType(t any) ErrorI {
	return NewError(CodeUnknownTxType, LedgerModule, fmt.Sprintf("unknown transaction payload: %T", t))
}

func ErrInvalidEvidence(reason string) ErrorI {
	return NewError(CodeInvalidEvidence, LedgerModule, fmt.Sprintf("the evidence is invalid: %s", reason))
}

func ErrDuplicateEvidence() ErrorI {
	return NewError(CodeDuplicateEvidence, LedgerModule, "the evidence pair was already slashed")
}

func ErrUnknownValidator() ErrorI {
	return NewError(CodeUnknownValidator, LedgerModule, "the address is not a bonded validator")
}

func ErrInvalidTxSignature() ErrorI {
	return NewError(CodeInvalidTxSignature, LedgerModule, "the transaction signature is invalid")
}

func ErrStateRootMismatch() ErrorI {
	return NewError(CodeStateRootMismatch, LedgerModule, "the block state root does not match the replayed ledger")
}

func ErrInvalidBlockHeight() ErrorI {
	return NewError(CodeInvalidBlockHeight, LedgerModule, "the block height is not parent height + 1")
}

// mempool module errors

func ErrDuplicateTransaction() ErrorI {
	return NewError(CodeDuplicateTransaction, MempoolModule, "the transaction is already in the mempool")
}

func ErrMempoolFull() ErrorI {
	return NewError(CodeMempoolFull, MempoolModule, "the mempool is at capacity")
}

func ErrTxTooLarge() ErrorI {
	return NewError(CodeTxTooLarge, MempoolModule, "the transaction exceeds the maximum size")
}

// store module errors

func ErrOpenDB(err error) ErrorI {
	return NewError(CodeOpenDB, StoreModule, fmt.Sprintf("open database failed with err: %s", err.Error()))
}

func ErrStoreSet(err error) ErrorI {
	return NewError(CodeStoreSet, StoreModule, fmt.Sprintf("store set failed with err: %s", err.Error()))
}

func ErrStoreGet(err error) ErrorI {
	return NewError(CodeStoreGet, StoreModule, fmt.Sprintf("store get failed with err: %s", err.Error()))
}


func ErrBlockNotFound() ErrorI {
	return NewError(CodeBlockNotFound, StoreModule, "the block was not found")
}

// rpc module errors

func ErrRPCTimeout() ErrorI {
	return NewError(CodeRPCTimeout, RPCModule, "the rpc request timed out")
}

func ErrRPCBadRequest(reason string) ErrorI {
	return NewError(CodeRPCBadRequest, RPCModule, fmt.Sprintf("bad request: %s", reason))
}

func ErrRPCServerDown(err error) ErrorI {
	return NewError(CodeRPCServerDown, RPCModule, fmt.Sprintf("the rpc server is unreachable: %s", err.Error()))
}


