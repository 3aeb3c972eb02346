package types

import (
	"errors"
	"fmt"
)

// authorization
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotWhitelisted    = errors.New("not whitelisted")
	ErrNotActiveGovernor = errors.New("not active governor")
)

// state preconditions
var (
	ErrInvalidState                 = errors.New("invalid state")
	ErrProposingGenesisParticipants = errors.New("proposing genesis participants")
	ErrAlreadyApproved              = errors.New("already approved")
	ErrParticipantRemoved           = errors.New("participant removed")
	ErrVotingClosed                 = errors.New("voting closed")
	ErrVotingOpen                   = errors.New("voting still open")
	ErrExecutionDelay               = errors.New("execution delay not elapsed")
	ErrProposalNoexists             = errors.New("proposal noexists")
	ErrCrowdfundNoexists            = errors.New("crowdfund noexists")
	ErrBatchNoexists                = errors.New("participant batch noexists")
	ErrTargetNotReached             = errors.New("target not reached")
	ErrUnknownProposalKind          = errors.New("unknown proposal kind")
	ErrUnknownVariant               = errors.New("unknown thread variant")
	ErrInvalidParticipantType       = errors.New("invalid participant type")
	ErrInvalidAmount                = errors.New("invalid amount")
	ErrInvalidThreadData            = errors.New("invalid thread data")
	ErrInvalidPayload               = errors.New("invalid proposal payload")
)

// cryptographic verification
var (
	ErrInvalidProof     = errors.New("invalid proof")
	ErrInvalidSignature = errors.New("invalid signature")
)

// resource sufficiency
var (
	ErrInsufficientBond    = errors.New("insufficient bond")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoVotingWeight      = errors.New("no voting weight")
	ErrBondLocked          = errors.New("bond locked")
)

// InvalidStateError reports an operation attempted outside the lifecycle
// state it requires. It matches ErrInvalidState under errors.Is.
type InvalidStateError struct {
	Actual   uint8
	Expected uint8
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("InvalidState(%d, %d)", e.Actual, e.Expected)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

func NewInvalidState[S ~uint8](actual, expected S) error {
	return &InvalidStateError{Actual: uint8(actual), Expected: uint8(expected)}
}
