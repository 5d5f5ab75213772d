package swap

import (
	"crypto/sha256"
	"crypto/subtle"
	"math/big"
)

// Pure predicate layer. Every check returns a sentinel from errors.go and
// reads nothing outside its arguments, so the settlement operations can
// validate everything before mutating anything.

func validateOrderParams(p OrderParams, height uint64, minTimelock, maxTimelock uint64) error {
	if p.Timelock <= height {
		return ErrInvalidTimelock
	}
	if p.Timelock-height < minTimelock {
		return ErrTimelockTooShort
	}
	if p.Timelock-height > maxTimelock {
		return ErrTimelockTooLong
	}
	if p.SourceChain == p.DestChain {
		return ErrInvalidChainPair
	}
	if err := checkAmount(p.TotalAmount); err != nil {
		return err
	}
	if p.TotalAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if p.MinFillAmount == nil || p.MinFillAmount.Sign() <= 0 || p.MinFillAmount.Cmp(p.TotalAmount) > 0 {
		return ErrInvalidFillBounds
	}
	if p.MaxFills == 0 {
		return ErrInvalidFillBounds
	}
	if err := checkAmount(p.DestAmountPerUnit); err != nil {
		return err
	}
	return nil
}

func validateFillRequest(order *Order, requested *big.Int, height uint64) error {
	if order.Cancelled {
		return ErrOrderCancelled
	}
	if height >= order.Timelock {
		return ErrTimelockExpired
	}
	if order.FilledAmount.Cmp(order.TotalAmount) >= 0 {
		return ErrOrderCompleted
	}
	if order.CurrentFills >= order.MaxFills {
		return ErrMaxFillsReached
	}
	if err := checkAmount(requested); err != nil {
		return err
	}
	if requested.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// clampFillAmount applies the fill-size policy: an over-large request is
// clamped down to the remaining amount, never rejected for size. A clamped
// amount below the order minimum passes only when the remainder itself was
// already below the minimum (the final dust-clearing fill). Orders that
// forbid partial fills must be consumed whole.
func clampFillAmount(order *Order, requested *big.Int) (*big.Int, error) {
	remaining := order.Remaining()
	amount := new(big.Int).Set(requested)
	if amount.Cmp(remaining) > 0 {
		amount.Set(remaining)
	}
	if amount.Cmp(order.MinFillAmount) < 0 && remaining.Cmp(order.MinFillAmount) >= 0 {
		return nil, ErrFillTooSmall
	}
	if !order.AllowPartialFills && amount.Cmp(remaining) != 0 {
		return nil, ErrPartialFillsDisabled
	}
	return amount, nil
}

func validateWithdraw(fill *Fill, order *Order, caller [20]byte, height uint64) error {
	if caller != fill.Taker {
		return ErrUnauthorized
	}
	if fill.Settled() {
		return ErrAlreadySettled
	}
	if height >= order.Timelock {
		return ErrTimelockExpired
	}
	return nil
}

func validateRefund(fill *Fill, order *Order, caller [20]byte, height uint64) error {
	if caller != order.Maker {
		return ErrUnauthorized
	}
	if fill.Settled() {
		return ErrAlreadySettled
	}
	if height < order.Timelock {
		return ErrTimelockNotExpired
	}
	return nil
}

// HashSecret computes the hashlock digest of a secret. Exposed so makers and
// tests derive hashlocks exactly the way verification does.
func HashSecret(secret [32]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

func verifyPreimage(hashlock [32]byte, preimage [32]byte) error {
	digest := HashSecret(preimage)
	if subtle.ConstantTimeCompare(digest[:], hashlock[:]) != 1 {
		return ErrSecretMismatch
	}
	return nil
}
