package swap

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"crossfill/core/types"
)

const (
	EventTypeOrderCreated   = "swap.order_created"
	EventTypeOrderFilled    = "swap.order_filled"
	EventTypeFillWithdrawn  = "swap.fill_withdrawn"
	EventTypeFillRefunded   = "swap.fill_refunded"
	EventTypeOrderCancelled = "swap.order_cancelled"
	EventTypeAddressMapped  = "swap.address_mapped"
	EventTypeFeeRateUpdated = "swap.fee_rate_updated"
	EventTypeFeesSwept      = "swap.fees_swept"
)

// NewOrderCreatedEvent returns the canonical payload for a new order.
func NewOrderCreatedEvent(o *Order) *types.Event {
	attrs := make(map[string]string)
	if o != nil {
		attrs["orderId"] = hex.EncodeToString(o.ID[:])
		attrs["maker"] = hex.EncodeToString(o.Maker[:])
		attrs["totalAmount"] = bigString(o.TotalAmount)
		attrs["minFillAmount"] = bigString(o.MinFillAmount)
		attrs["fee"] = bigString(o.Fee)
		attrs["hashlock"] = hex.EncodeToString(o.Hashlock[:])
		attrs["timelock"] = strconv.FormatUint(o.Timelock, 10)
		attrs["swapId"] = hex.EncodeToString(o.SwapID[:])
		attrs["sourceChain"] = strconv.FormatUint(uint64(o.SourceChain), 10)
		attrs["destChain"] = strconv.FormatUint(uint64(o.DestChain), 10)
		attrs["destAmountPerUnit"] = bigString(o.DestAmountPerUnit)
		attrs["allowPartialFills"] = strconv.FormatBool(o.AllowPartialFills)
		attrs["maxFills"] = strconv.FormatUint(uint64(o.MaxFills), 10)
	}
	return &types.Event{Type: EventTypeOrderCreated, Attributes: attrs}
}

// NewOrderFilledEvent returns the payload emitted when a fill is recorded.
// destAmount is the informational destination-side equivalent of the fill.
func NewOrderFilledEvent(o *Order, f *Fill, destAmount *big.Int) *types.Event {
	attrs := make(map[string]string)
	if o != nil && f != nil {
		attrs["orderId"] = hex.EncodeToString(o.ID[:])
		attrs["fillId"] = hex.EncodeToString(f.ID[:])
		attrs["taker"] = hex.EncodeToString(f.Taker[:])
		attrs["fillAmount"] = bigString(f.FillAmount)
		attrs["destAmount"] = bigString(destAmount)
		attrs["escrowId"] = hex.EncodeToString(f.EscrowID[:])
	}
	return &types.Event{Type: EventTypeOrderFilled, Attributes: attrs}
}

// NewFillWithdrawnEvent returns the payload for a secret-reveal withdrawal.
// The revealed secret is included so counterpart-ledger watchers can unlock
// the mirrored escrow.
func NewFillWithdrawnEvent(f *Fill, secret [32]byte) *types.Event {
	attrs := make(map[string]string)
	if f != nil {
		attrs["fillId"] = hex.EncodeToString(f.ID[:])
		attrs["taker"] = hex.EncodeToString(f.Taker[:])
		attrs["secret"] = hex.EncodeToString(secret[:])
	}
	return &types.Event{Type: EventTypeFillWithdrawn, Attributes: attrs}
}

// NewFillRefundedEvent returns the payload for a timelock refund.
func NewFillRefundedEvent(f *Fill, maker [20]byte) *types.Event {
	attrs := make(map[string]string)
	if f != nil {
		attrs["fillId"] = hex.EncodeToString(f.ID[:])
		attrs["maker"] = hex.EncodeToString(maker[:])
		attrs["fillAmount"] = bigString(f.FillAmount)
	}
	return &types.Event{Type: EventTypeFillRefunded, Attributes: attrs}
}

// NewOrderCancelledEvent returns the payload for an order cancellation.
func NewOrderCancelledEvent(o *Order) *types.Event {
	attrs := make(map[string]string)
	if o != nil {
		attrs["orderId"] = hex.EncodeToString(o.ID[:])
		attrs["maker"] = hex.EncodeToString(o.Maker[:])
	}
	return &types.Event{Type: EventTypeOrderCancelled, Attributes: attrs}
}

// NewAddressMappedEvent returns the payload for a registry update.
func NewAddressMappedEvent(account [20]byte, addr *CrossChainAddress) *types.Event {
	attrs := map[string]string{
		"account": hex.EncodeToString(account[:]),
	}
	if addr != nil {
		attrs["kind"] = strconv.FormatUint(uint64(addr.Kind), 10)
		attrs["address"] = hex.EncodeToString(addr.Raw)
	}
	return &types.Event{Type: EventTypeAddressMapped, Attributes: attrs}
}

// NewFeeRateUpdatedEvent returns the payload for an admin fee-rate change.
func NewFeeRateUpdatedEvent(rateBps uint32) *types.Event {
	return &types.Event{Type: EventTypeFeeRateUpdated, Attributes: map[string]string{
		"feeRateBps": strconv.FormatUint(uint64(rateBps), 10),
	}}
}

// NewFeesSweptEvent returns the payload for a protocol fee sweep.
func NewFeesSweptEvent(admin [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFeesSwept, Attributes: map[string]string{
		"admin":  hex.EncodeToString(admin[:]),
		"amount": bigString(amount),
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
