package swap

import (
	"fmt"
	"math/big"
)

// ChainID identifies a ledger inside a cross-chain pair. The engine treats the
// values as opaque beyond requiring the two sides of a swap to differ.
type ChainID uint32

// maxFeeRateBps caps the protocol fee rate the admin may configure (10%).
const maxFeeRateBps uint32 = 1000

// destRateScale is the fixed-point scale of Order.DestAmountPerUnit.
var destRateScale = big.NewInt(1_000_000_000_000)

// Order is a maker's hashlocked escrow commitment. TotalAmount is net of the
// protocol fee taken at creation and never changes afterwards; FilledAmount
// moves as fills are created and refunded.
type Order struct {
	ID                   [32]byte
	Maker                [20]byte
	TotalAmount          *big.Int
	FilledAmount         *big.Int
	MinFillAmount        *big.Int
	Hashlock             [32]byte
	Timelock             uint64
	Cancelled            bool
	SwapID               [32]byte
	SourceChain          ChainID
	DestChain            ChainID
	DestAmountPerUnit    *big.Int
	Fee                  *big.Int
	AllowPartialFills    bool
	MaxFills             uint32
	CurrentFills         uint32
	MakerCrossAddress    []byte
	ReceiverCrossAddress []byte
	CreatedAt            int64
}

// Clone returns a deep copy so callers can mutate the copy without affecting
// the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.TotalAmount = cloneBigInt(o.TotalAmount)
	clone.FilledAmount = cloneBigInt(o.FilledAmount)
	clone.MinFillAmount = cloneBigInt(o.MinFillAmount)
	clone.DestAmountPerUnit = cloneBigInt(o.DestAmountPerUnit)
	clone.Fee = cloneBigInt(o.Fee)
	clone.MakerCrossAddress = append([]byte(nil), o.MakerCrossAddress...)
	clone.ReceiverCrossAddress = append([]byte(nil), o.ReceiverCrossAddress...)
	return &clone
}

// Remaining reports the unclaimed portion of the order.
func (o *Order) Remaining() *big.Int {
	if o == nil || o.TotalAmount == nil {
		return big.NewInt(0)
	}
	filled := o.FilledAmount
	if filled == nil {
		filled = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(o.TotalAmount, filled)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// SanitizeOrder validates structural invariants of an order record and returns
// a cloned instance with non-nil amount fields. It does not mutate the input.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("nil order")
	}
	clone := o.Clone()
	for _, amt := range []*big.Int{clone.TotalAmount, clone.FilledAmount, clone.MinFillAmount, clone.Fee} {
		if amt.Sign() < 0 {
			return nil, fmt.Errorf("order amounts must be non-negative")
		}
		if err := checkAmount(amt); err != nil {
			return nil, err
		}
	}
	if clone.FilledAmount.Cmp(clone.TotalAmount) > 0 {
		return nil, fmt.Errorf("filled amount exceeds total")
	}
	if clone.SourceChain == clone.DestChain {
		return nil, fmt.Errorf("source and destination chain must differ")
	}
	return clone, nil
}

// Fill records a taker's claim against a portion of an order. OrderID is a
// lookup key into the order store, never a live reference.
type Fill struct {
	ID         [32]byte
	OrderID    [32]byte
	Taker      [20]byte
	Receiver   [20]byte
	FillAmount *big.Int
	EscrowID   [32]byte
	Withdrawn  bool
	Refunded   bool
	Preimage   *[32]byte
	CreatedAt  int64
}

// Clone returns a deep copy of the fill record.
func (f *Fill) Clone() *Fill {
	if f == nil {
		return nil
	}
	clone := *f
	clone.FillAmount = cloneBigInt(f.FillAmount)
	if f.Preimage != nil {
		preimage := *f.Preimage
		clone.Preimage = &preimage
	}
	return &clone
}

// Settled reports whether the fill reached a terminal state.
func (f *Fill) Settled() bool {
	return f != nil && (f.Withdrawn || f.Refunded)
}

// SanitizeFill validates structural invariants of a fill record and returns a
// cloned instance. It does not mutate the input.
func SanitizeFill(f *Fill) (*Fill, error) {
	if f == nil {
		return nil, fmt.Errorf("nil fill")
	}
	clone := f.Clone()
	if clone.FillAmount.Sign() <= 0 {
		return nil, fmt.Errorf("fill amount must be positive")
	}
	if err := checkAmount(clone.FillAmount); err != nil {
		return nil, err
	}
	if clone.Withdrawn && clone.Refunded {
		return nil, fmt.Errorf("fill cannot be both withdrawn and refunded")
	}
	return clone, nil
}

// ProtocolState is the singleton configuration and accounting record of the
// engine: fee treasury, timelock policy, and the identifier counters.
type ProtocolState struct {
	Admin           [20]byte
	FeeRateBps      uint32
	AccumulatedFees *big.Int
	MinTimelock     uint64
	MaxTimelock     uint64
	OrderCounter    uint64
	FillCounter     uint64
}

// Clone returns a deep copy of the protocol state.
func (p *ProtocolState) Clone() *ProtocolState {
	if p == nil {
		return nil
	}
	clone := *p
	clone.AccumulatedFees = cloneBigInt(p.AccumulatedFees)
	return &clone
}

// DefaultProtocolState returns the genesis protocol configuration for the
// supplied admin: 30 bps fee, timelock window of [100, 14400] ledger units.
func DefaultProtocolState(admin [20]byte) *ProtocolState {
	return &ProtocolState{
		Admin:           admin,
		FeeRateBps:      30,
		AccumulatedFees: big.NewInt(0),
		MinTimelock:     100,
		MaxTimelock:     14_400,
	}
}

// OrderParams bundles the caller-supplied inputs of CreateOrder. TotalAmount
// is the gross deposit; the stored order's TotalAmount will be net of fee.
type OrderParams struct {
	TotalAmount          *big.Int
	MinFillAmount        *big.Int
	Hashlock             [32]byte
	Timelock             uint64
	SwapID               [32]byte
	SourceChain          ChainID
	DestChain            ChainID
	DestAmountPerUnit    *big.Int
	AllowPartialFills    bool
	MaxFills             uint32
	MakerCrossAddress    []byte
	ReceiverCrossAddress []byte
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
