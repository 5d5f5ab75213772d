package swap

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Amounts live in the 128-bit domain of the escrowed asset. The *big.Int API
// follows the rest of the codebase, but every amount entering the engine is
// bounded here so downstream arithmetic cannot silently wrap.
const amountBits = 128

// checkAmount rejects nil, negative, or wider-than-128-bit values.
func checkAmount(v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: nil amount", ErrInvalidAmount)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidAmount)
	}
	if v.BitLen() > amountBits {
		return ErrAmountOverflow
	}
	return nil
}

// addChecked returns a+b, failing when the sum leaves the amount domain.
func addChecked(a, b *big.Int) (*big.Int, error) {
	if err := checkAmount(a); err != nil {
		return nil, err
	}
	if err := checkAmount(b); err != nil {
		return nil, err
	}
	left, _ := uint256.FromBig(a)
	right, _ := uint256.FromBig(b)
	sum, overflow := new(uint256.Int).AddOverflow(left, right)
	if overflow || sum.BitLen() > amountBits {
		return nil, ErrAmountOverflow
	}
	return sum.ToBig(), nil
}

// subChecked returns a-b, failing on underflow.
func subChecked(a, b *big.Int) (*big.Int, error) {
	if err := checkAmount(a); err != nil {
		return nil, err
	}
	if err := checkAmount(b); err != nil {
		return nil, err
	}
	left, _ := uint256.FromBig(a)
	right, _ := uint256.FromBig(b)
	diff, underflow := new(uint256.Int).SubOverflow(left, right)
	if underflow {
		return nil, ErrAmountOverflow
	}
	return diff.ToBig(), nil
}

// amountLE16 serialises an amount as 16 little-endian bytes for identifier
// derivation. The width matches the asset's 128-bit balance type.
func amountLE16(v *big.Int) ([16]byte, error) {
	var out [16]byte
	if err := checkAmount(v); err != nil {
		return out, err
	}
	be := v.FillBytes(make([]byte, 16))
	for i := range out {
		out[i] = be[len(be)-1-i]
	}
	return out, nil
}
