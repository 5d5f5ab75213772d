package swap

import (
	"math/big"

	"github.com/holiman/uint256"
)

// ComputeFee splits a gross deposit into the net escrowed amount and the
// protocol fee: fee = floor(gross * feeRateBps / 10000). The engine trusts the
// stored rate; the admin operation caps it at configuration time. All
// arithmetic is overflow-checked rather than silently truncating.
func ComputeFee(gross *big.Int, feeRateBps uint32) (net, fee *big.Int, err error) {
	if err := checkAmount(gross); err != nil {
		return nil, nil, err
	}
	grossU, _ := uint256.FromBig(gross)
	product, overflow := new(uint256.Int).MulOverflow(grossU, uint256.NewInt(uint64(feeRateBps)))
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	feeU := product.Div(product, uint256.NewInt(10_000))
	netU, underflow := new(uint256.Int).SubOverflow(grossU, feeU)
	if underflow || netU.BitLen() > amountBits {
		return nil, nil, ErrAmountOverflow
	}
	return netU.ToBig(), feeU.ToBig(), nil
}

// DestAmount reports the destination-side equivalent of a source-side fill at
// the order's 1e12-scaled rate. Informational only: the engine never enforces
// it against destination-chain state.
func DestAmount(fillAmount, destAmountPerUnit *big.Int) (*big.Int, error) {
	if err := checkAmount(fillAmount); err != nil {
		return nil, err
	}
	if err := checkAmount(destAmountPerUnit); err != nil {
		return nil, err
	}
	product := new(big.Int).Mul(fillAmount, destAmountPerUnit)
	dest := product.Div(product, destRateScale)
	if dest.BitLen() > amountBits {
		return nil, ErrAmountOverflow
	}
	return dest, nil
}
