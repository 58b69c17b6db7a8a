package stable

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of these via
// errors.Is, except the oracle bound error which matches both ErrInvalidInput and
// ErrOutOfBounds.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrOutOfBounds         = errors.New("out of bounds")
	ErrArithmetic          = errors.New("arithmetic error")
	ErrPeriodLimitExceeded = errors.New("period limit exceeded")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidState        = errors.New("invalid state")
)

var (
	ErrZeroAmount          = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	ErrUnknownOperation    = fmt.Errorf("%w: unknown operation", ErrInvalidInput)
	ErrInvalidDecimals     = fmt.Errorf("%w: decimals out of range", ErrInvalidInput)
	ErrInvalidIndex        = fmt.Errorf("%w: slot index out of range", ErrInvalidInput)
	ErrInvalidPegInput     = fmt.Errorf("%w: peg price must be positive", ErrInvalidInput)
	ErrInvalidOracleInput  = fmt.Errorf("%w: oracle price must be positive", ErrInvalidInput)
	ErrInvalidCustodian    = fmt.Errorf("%w: custodian must be set", ErrInvalidInput)
	ErrInvalidVaultMint    = fmt.Errorf("%w: vault mint must differ from the stable mint", ErrInvalidInput)
	ErrMissingOracleSample = fmt.Errorf("%w: missing oracle sample", ErrInvalidInput)
	ErrUnknownInstruction  = fmt.Errorf("%w: unknown instruction", ErrInvalidInput)
	ErrEntityNotFound      = fmt.Errorf("%w: entity not found", ErrInvalidInput)
	ErrEntityExists        = fmt.Errorf("%w: entity already exists", ErrInvalidInput)

	ErrOraclePriceOutOfBounds = fmt.Errorf("%w: %w: oracle price outside vault bounds", ErrInvalidInput, ErrOutOfBounds)
	ErrInvalidPegPrice        = fmt.Errorf("%w: peg price must be within (0, 2)", ErrOutOfBounds)
	ErrInvalidFeeRate         = fmt.Errorf("%w: fee rate must be within [0, 10000] bps", ErrOutOfBounds)
	ErrInvalidPeriodLimit     = fmt.Errorf("%w: period limit duration", ErrOutOfBounds)
	ErrInvalidOracleBounds    = fmt.Errorf("%w: oracle price bounds", ErrOutOfBounds)
	ErrUnknownRole            = fmt.Errorf("%w: unknown role", ErrOutOfBounds)
	ErrUnknownStatus          = fmt.Errorf("%w: unknown status", ErrOutOfBounds)
	ErrBadOracle              = fmt.Errorf("%w: oracle rejected", ErrOutOfBounds)
	ErrPriceConfidenceTooWide = fmt.Errorf("%w: price confidence too wide", ErrOutOfBounds)
	ErrSlippageExceeded       = fmt.Errorf("%w: output below minimum", ErrOutOfBounds)

	ErrFeeExceedsAmount    = fmt.Errorf("%w: fee exceeds amount", ErrArithmetic)
	ErrArithmeticUnderflow = fmt.Errorf("%w: underflow", ErrArithmetic)
	ErrArithmeticOverflow  = fmt.Errorf("%w: overflow", ErrArithmetic)
	ErrDivisionByZero      = fmt.Errorf("%w: division by zero", ErrArithmetic)

	ErrUnknownOperator            = fmt.Errorf("%w: signer is not an operator", ErrUnauthorized)
	ErrOperatorDisabled           = fmt.Errorf("%w: operator disabled", ErrUnauthorized)
	ErrMissingRole                = fmt.Errorf("%w: operator lacks role", ErrUnauthorized)
	ErrOperatorCannotDeleteItself = fmt.Errorf("%w: operator cannot delete itself", ErrUnauthorized)

	ErrProtocolPaused     = fmt.Errorf("%w: protocol paused", ErrInvalidState)
	ErrVaultDisabled      = fmt.Errorf("%w: vault disabled", ErrInvalidState)
	ErrVaultEnabled       = fmt.Errorf("%w: vault enabled", ErrInvalidState)
	ErrBenefactorDisabled = fmt.Errorf("%w: benefactor disabled", ErrInvalidState)
	ErrNoValidOracle      = fmt.Errorf("%w: vault has no configured oracle", ErrInvalidState)
	ErrVaultDry           = fmt.Errorf("%w: vault balance below redeem amount", ErrInvalidState)
	ErrNotInitialized     = fmt.Errorf("%w: protocol not initialised", ErrInvalidState)
	ErrAlreadyInitialized = fmt.Errorf("%w: protocol already initialised", ErrInvalidState)
)

// PeriodLimitViolation reports the first rolling window that cannot absorb an amount.
type PeriodLimitViolation struct {
	Scope           LimitScope `json:"scope"`
	Index           int        `json:"index"`
	Operation       Operation  `json:"operation"`
	RemainingAmount uint64     `json:"remainingAmount"`
}

// Error satisfies the error interface so violations can be returned directly.
func (v *PeriodLimitViolation) Error() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%s %s limit exceeded at slot %d: remaining %d", v.Scope, v.Operation, v.Index, v.RemainingAmount)
}

// Is matches ErrPeriodLimitExceeded.
func (v *PeriodLimitViolation) Is(target error) bool {
	return target == ErrPeriodLimitExceeded
}

// Kind returns the short name of the error kind err belongs to, or "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPeriodLimitExceeded):
		return "period_limit_exceeded"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, ErrArithmetic):
		return "arithmetic_error"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}
