package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"crossfill/native/swap"
)

func decodeHex(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	return hex.DecodeString(trimmed)
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	raw, err := decodeHex(value)
	if err != nil {
		return addr, fmt.Errorf("address: %w", err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("address: expected 20 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseHash(value string) ([32]byte, error) {
	var hash [32]byte
	raw, err := decodeHex(value)
	if err != nil {
		return hash, fmt.Errorf("hash: %w", err)
	}
	if len(raw) != len(hash) {
		return hash, fmt.Errorf("hash: expected 32 bytes, got %d", len(raw))
	}
	copy(hash[:], raw)
	return hash, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("empty amount")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a base-10 integer", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func hexBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}

func hex32(b [32]byte) string { return hexBytes(b[:]) }

func hexAddr(b [20]byte) string { return hexBytes(b[:]) }

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// orderView is the JSON shape of an order returned over RPC.
type orderView struct {
	ID                   string `json:"id"`
	Maker                string `json:"maker"`
	TotalAmount          string `json:"totalAmount"`
	FilledAmount         string `json:"filledAmount"`
	RemainingAmount      string `json:"remainingAmount"`
	MinFillAmount        string `json:"minFillAmount"`
	Hashlock             string `json:"hashlock"`
	Timelock             uint64 `json:"timelock"`
	Cancelled            bool   `json:"cancelled"`
	SwapID               string `json:"swapId"`
	SourceChain          uint32 `json:"sourceChain"`
	DestChain            uint32 `json:"destChain"`
	DestAmountPerUnit    string `json:"destAmountPerUnit"`
	Fee                  string `json:"fee"`
	AllowPartialFills    bool   `json:"allowPartialFills"`
	MaxFills             uint32 `json:"maxFills"`
	CurrentFills         uint32 `json:"currentFills"`
	MakerCrossAddress    string `json:"makerCrossAddress,omitempty"`
	ReceiverCrossAddress string `json:"receiverCrossAddress,omitempty"`
	CreatedAt            int64  `json:"createdAt"`
}

func newOrderView(o *swap.Order) *orderView {
	if o == nil {
		return nil
	}
	return &orderView{
		ID:                   hex32(o.ID),
		Maker:                hexAddr(o.Maker),
		TotalAmount:          amountString(o.TotalAmount),
		FilledAmount:         amountString(o.FilledAmount),
		RemainingAmount:      amountString(o.Remaining()),
		MinFillAmount:        amountString(o.MinFillAmount),
		Hashlock:             hex32(o.Hashlock),
		Timelock:             o.Timelock,
		Cancelled:            o.Cancelled,
		SwapID:               hex32(o.SwapID),
		SourceChain:          uint32(o.SourceChain),
		DestChain:            uint32(o.DestChain),
		DestAmountPerUnit:    amountString(o.DestAmountPerUnit),
		Fee:                  amountString(o.Fee),
		AllowPartialFills:    o.AllowPartialFills,
		MaxFills:             o.MaxFills,
		CurrentFills:         o.CurrentFills,
		MakerCrossAddress:    hexBytes(o.MakerCrossAddress),
		ReceiverCrossAddress: hexBytes(o.ReceiverCrossAddress),
		CreatedAt:            o.CreatedAt,
	}
}

// fillView is the JSON shape of a fill returned over RPC. The preimage is
// deliberately omitted; swap_fillSecret exposes it explicitly.
type fillView struct {
	ID         string `json:"id"`
	OrderID    string `json:"orderId"`
	Taker      string `json:"taker"`
	Receiver   string `json:"receiver"`
	FillAmount string `json:"fillAmount"`
	EscrowID   string `json:"escrowId"`
	Withdrawn  bool   `json:"withdrawn"`
	Refunded   bool   `json:"refunded"`
	CreatedAt  int64  `json:"createdAt"`
}

func newFillView(f *swap.Fill) *fillView {
	if f == nil {
		return nil
	}
	return &fillView{
		ID:         hex32(f.ID),
		OrderID:    hex32(f.OrderID),
		Taker:      hexAddr(f.Taker),
		Receiver:   hexAddr(f.Receiver),
		FillAmount: amountString(f.FillAmount),
		EscrowID:   hex32(f.EscrowID),
		Withdrawn:  f.Withdrawn,
		Refunded:   f.Refunded,
		CreatedAt:  f.CreatedAt,
	}
}
