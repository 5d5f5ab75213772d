package swap

import "errors"

// ErrorKind groups the failure conditions of the settlement engine into the
// categories callers are expected to branch on. Every error returned by an
// engine operation carries exactly one kind.
type ErrorKind uint8

const (
	KindNotFound ErrorKind = iota + 1
	KindAlreadyExists
	KindUnauthorized
	KindInvalidParameter
	KindStateConflict
	KindTimingViolation
	KindSecretMismatch
	KindArithmeticOverflow
	KindTransferFailure
)

// String returns the canonical name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindStateConflict:
		return "state_conflict"
	case KindTimingViolation:
		return "timing_violation"
	case KindSecretMismatch:
		return "secret_mismatch"
	case KindArithmeticOverflow:
		return "arithmetic_overflow"
	case KindTransferFailure:
		return "transfer_failure"
	default:
		return "unknown"
	}
}

// Error is the engine's error type. Sentinel instances below cover every
// condition the engine detects; operations wrap them with fmt.Errorf("%w: ...")
// when extra detail helps, so errors.Is against the sentinel always matches.
type Error struct {
	kind ErrorKind
	msg  string
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return "swap: " + e.msg }

// Kind returns the taxonomy bucket this error belongs to.
func (e *Error) Kind() ErrorKind { return e.kind }

// KindOf extracts the ErrorKind from err if it carries one, unwrapping as
// needed. It returns zero when err is not an engine error.
func KindOf(err error) ErrorKind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.kind
	}
	return 0
}

var (
	ErrOrderNotFound = newError(KindNotFound, "order not found")
	ErrFillNotFound  = newError(KindNotFound, "fill not found")

	ErrOrderExists = newError(KindAlreadyExists, "order id already exists")
	ErrFillExists  = newError(KindAlreadyExists, "fill id already exists")

	ErrUnauthorized = newError(KindUnauthorized, "caller not authorized")

	ErrInvalidTimelock     = newError(KindInvalidParameter, "timelock not in the future")
	ErrTimelockTooShort    = newError(KindInvalidParameter, "timelock below minimum window")
	ErrTimelockTooLong     = newError(KindInvalidParameter, "timelock above maximum window")
	ErrInvalidChainPair    = newError(KindInvalidParameter, "source and destination chain must differ")
	ErrInvalidFillBounds   = newError(KindInvalidParameter, "invalid min fill amount or max fills")
	ErrInvalidAmount       = newError(KindInvalidParameter, "amount must be positive")
	ErrFillTooSmall        = newError(KindInvalidParameter, "fill amount below order minimum")
	ErrInsufficientDeposit = newError(KindInvalidParameter, "attached deposit below order amount")
	ErrFeeRateTooHigh      = newError(KindInvalidParameter, "fee rate above 1000 bps")
	ErrInvalidCrossAddress = newError(KindInvalidParameter, "malformed cross-chain address")
	ErrReservedAddress     = newError(KindInvalidParameter, "vault address cannot act as a party")

	ErrOrderCancelled       = newError(KindStateConflict, "order cancelled")
	ErrOrderCompleted       = newError(KindStateConflict, "order fully filled")
	ErrMaxFillsReached      = newError(KindStateConflict, "order fill slots exhausted")
	ErrPartialFillsDisabled = newError(KindStateConflict, "order requires a full fill")
	ErrAlreadySettled       = newError(KindStateConflict, "fill already withdrawn or refunded")
	ErrNoAccruedFees        = newError(KindStateConflict, "no protocol fees accrued")

	ErrTimelockExpired    = newError(KindTimingViolation, "order timelock expired")
	ErrTimelockNotExpired = newError(KindTimingViolation, "order timelock not yet expired")

	ErrSecretMismatch = newError(KindSecretMismatch, "preimage does not match hashlock")

	ErrAmountOverflow = newError(KindArithmeticOverflow, "amount outside 128-bit range")

	ErrTransferFailed = newError(KindTransferFailure, "value transfer failed")
)
