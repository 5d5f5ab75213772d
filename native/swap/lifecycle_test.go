package swap_test

import (
	"math/big"
	"testing"

	"crossfill/core/state"
	"crossfill/core/types"
	"crossfill/native/swap"
	"crossfill/storage"
)

// Full order lifecycle against the real persistence stack: LevelDB-shaped KV
// store, RLP records, and the keccak key schema, exactly as the daemon wires
// them.
func TestLifecycleAgainstPersistentState(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())

	var admin, maker, taker [20]byte
	admin[0], maker[0], taker[0] = 0xAA, 0x01, 0x02

	height := uint64(1_000)
	engine := swap.NewEngine()
	engine.SetState(manager)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	engine.SetHeightFunc(func() uint64 { return height })
	if err := engine.Initialize(swap.DefaultProtocolState(admin)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := manager.PutAccount(maker[:], &types.Account{Balance: big.NewInt(10_000)}); err != nil {
		t.Fatalf("fund maker: %v", err)
	}

	var secret [32]byte
	secret[0] = 0x5E

	orderID, err := engine.CreateOrder(maker, big.NewInt(1_000), swap.OrderParams{
		TotalAmount:       big.NewInt(1_000),
		MinFillAmount:     big.NewInt(10),
		Hashlock:          swap.HashSecret(secret),
		Timelock:          2_000,
		SourceChain:       1,
		DestChain:         2,
		DestAmountPerUnit: big.NewInt(1_000_000_000_000),
		AllowPartialFills: true,
		MaxFills:          10,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	withdrawnFill, err := engine.FillOrder(orderID, taker, big.NewInt(200), taker)
	if err != nil {
		t.Fatalf("first fill: %v", err)
	}
	refundedFill, err := engine.FillOrder(orderID, taker, big.NewInt(300), taker)
	if err != nil {
		t.Fatalf("second fill: %v", err)
	}

	if err := engine.WithdrawFill(withdrawnFill, taker, secret); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	revealed, err := engine.FillSecret(withdrawnFill)
	if err != nil || revealed == nil || *revealed != secret {
		t.Fatalf("secret did not survive storage: %v %v", revealed, err)
	}

	height = 2_000
	if err := engine.RefundFill(refundedFill, maker); err != nil {
		t.Fatalf("refund: %v", err)
	}

	order, err := engine.GetOrder(orderID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if got := order.FilledAmount.Int64(); got != 200 {
		t.Fatalf("filled after refund: got %d, want 200", got)
	}
	if order.CurrentFills != 1 {
		t.Fatalf("current fills after refund: got %d, want 1", order.CurrentFills)
	}

	takerAcc, err := manager.GetAccount(taker[:])
	if err != nil {
		t.Fatalf("taker account: %v", err)
	}
	if got := takerAcc.Balance.Int64(); got != 200 {
		t.Fatalf("taker balance: got %d, want 200", got)
	}

	if err := engine.SweepFees(admin); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	adminAcc, err := manager.GetAccount(admin[:])
	if err != nil {
		t.Fatalf("admin account: %v", err)
	}
	if got := adminAcc.Balance.Int64(); got != 3 {
		t.Fatalf("admin balance after sweep: got %d, want 3", got)
	}

	fills, err := engine.OrderFills(orderID)
	if err != nil {
		t.Fatalf("order fills: %v", err)
	}
	if len(fills) != 2 || fills[0] != withdrawnFill || fills[1] != refundedFill {
		t.Fatalf("fill index did not survive storage: %v", fills)
	}
}
