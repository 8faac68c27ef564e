// Package seloriaerr defines the sentinel error kinds shared by the state
// store, VM, mempool and consensus packages so callers can branch on them
// with errors.Is instead of parsing strings.
package seloriaerr

import "errors"

var (
	ErrBadEncoding     = errors.New("bad encoding")
	ErrBadSignature    = errors.New("bad signature")
	ErrNotCertified    = errors.New("sender not certified")
	ErrBadNonce        = errors.New("bad nonce")
	ErrInsufficient    = errors.New("insufficient balance")
	ErrBadStake        = errors.New("bad stake")
	ErrNoClaim         = errors.New("claim not found")
	ErrAlreadyAttested = errors.New("already attested")
	ErrFinalized       = errors.New("claim already finalized")
	ErrUnknownIssuer   = errors.New("unknown issuer")
	ErrExpired         = errors.New("certificate expired")
	ErrSenderMismatch  = errors.New("sender mismatch")
	ErrDuplicate       = errors.New("duplicate")
	ErrNoNamespace     = errors.New("namespace not found")
	ErrNoKey           = errors.New("key not found")
	ErrPolicyDenied    = errors.New("namespace policy denied")
	ErrStakeTooLow     = errors.New("stake too low for namespace write")
	ErrNoPool          = errors.New("pool not found")
	ErrNoToken         = errors.New("token not found")
	ErrBadAmount       = errors.New("bad amount")
	ErrSlippage        = errors.New("slippage exceeded")
	ErrInvalidProposal = errors.New("invalid proposal")
	ErrQuorumUnmet     = errors.New("quorum not met")
	ErrIO              = errors.New("io error")
	ErrMempoolFull     = errors.New("mempool full")
	ErrNotLeader       = errors.New("not the current leader")
	ErrHeightMismatch  = errors.New("block height mismatch")
	ErrPrevHashMismatch = errors.New("previous hash mismatch")
	ErrInvalidStateRoot = errors.New("invalid state root")
	ErrInvalidTxRoot    = errors.New("invalid tx root")
	ErrChainIDMismatch  = errors.New("chain id mismatch")
	ErrValidatorUnknown = errors.New("unknown validator")
	ErrDuplicateSig     = errors.New("duplicate validator signature")
)
