package types

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engine
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrValidationRejected    = errors.New("opportunity validation failed")
	ErrCollaboratorFailure   = errors.New("collaborator failure")
	ErrConfirmationTimeout   = errors.New("confirmation timeout")
	ErrCancellationRequested = errors.New("cancellation requested")
)

var (
	ErrInvalidAddress   = fmt.Errorf("%w: invalid destination address", ErrInvalidInput)
	ErrGasLimitTooLow   = fmt.Errorf("%w: gas limit too low", ErrInvalidInput)
	ErrGasPriceTooHigh  = fmt.Errorf("%w: gas price too high", ErrInvalidInput)
	ErrMalformedRecord  = fmt.Errorf("%w: malformed record", ErrInvalidInput)
	ErrGasLimitOverflow = fmt.Errorf("%w: gas limit exceeds 64 bits", ErrInvalidInput)
	ErrNonceOverflow    = fmt.Errorf("%w: nonce exceeds 64 bits", ErrInvalidInput)
)

// Stage is a state of the cross-chain execution state machine
type Stage string

const (
	StageStart            Stage = "start"
	StageValidating       Stage = "validating"
	StageRejected         Stage = "rejected"
	StageSourceTrading    Stage = "source_trading"
	StageBridging         Stage = "bridging"
	StageConfirmingBridge Stage = "confirming_bridge"
	StageTargetTrading    Stage = "target_trading"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// Terminal reports whether no transition leaves the stage
func (s Stage) Terminal() bool {
	return s == StageRejected || s == StageCompleted || s == StageFailed
}

// StageError describes where an execution stopped and what had already been
// submitted on-chain at that point.
type StageError struct {
	Stage         Stage
	ExecutionID   string
	OpportunityID string
	SourceTx      string
	BridgeRef     string
	Err           error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("execution %s failed at %s: %v", e.ExecutionID, e.Stage, e.Err)
	if e.SourceTx != "" {
		msg += fmt.Sprintf(" (source_tx=%s", e.SourceTx)
		if e.BridgeRef != "" {
			msg += fmt.Sprintf(", bridge_ref=%s", e.BridgeRef)
		}
		msg += ")"
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RequiresReconciliation is true once the source trade has been submitted:
// funds are either sitting on the source network or in transit.
func (e *StageError) RequiresReconciliation() bool {
	return e.SourceTx != ""
}
