package swap

import (
	"errors"
	"math/big"
	"testing"
)

func TestOrderIDDeterministic(t *testing.T) {
	maker := addr(0x11)
	hashlock := hash(0x22)
	swapID := hash(0x33)

	first, err := orderID(maker, big.NewInt(997), hashlock, 2_000, swapID, 1)
	if err != nil {
		t.Fatalf("order id: %v", err)
	}
	second, err := orderID(maker, big.NewInt(997), hashlock, 2_000, swapID, 1)
	if err != nil {
		t.Fatalf("order id: %v", err)
	}
	if first != second {
		t.Fatalf("identical inputs produced different ids")
	}
}

func TestOrderIDSensitivity(t *testing.T) {
	maker := addr(0x11)
	hashlock := hash(0x22)
	swapID := hash(0x33)

	base, err := orderID(maker, big.NewInt(997), hashlock, 2_000, swapID, 1)
	if err != nil {
		t.Fatalf("order id: %v", err)
	}
	variants := []struct {
		name string
		id   func() ([32]byte, error)
	}{
		{"maker", func() ([32]byte, error) { return orderID(addr(0x12), big.NewInt(997), hashlock, 2_000, swapID, 1) }},
		{"amount", func() ([32]byte, error) { return orderID(maker, big.NewInt(998), hashlock, 2_000, swapID, 1) }},
		{"hashlock", func() ([32]byte, error) { return orderID(maker, big.NewInt(997), hash(0x23), 2_000, swapID, 1) }},
		{"timelock", func() ([32]byte, error) { return orderID(maker, big.NewInt(997), hashlock, 2_001, swapID, 1) }},
		{"swap id", func() ([32]byte, error) { return orderID(maker, big.NewInt(997), hashlock, 2_000, hash(0x34), 1) }},
		{"counter", func() ([32]byte, error) { return orderID(maker, big.NewInt(997), hashlock, 2_000, swapID, 2) }},
	}
	for _, tc := range variants {
		t.Run(tc.name, func(t *testing.T) {
			id, err := tc.id()
			if err != nil {
				t.Fatalf("order id: %v", err)
			}
			if id == base {
				t.Fatalf("changing %s did not change the id", tc.name)
			}
		})
	}
}

func TestOrderIDRejectsWideAmount(t *testing.T) {
	wide := new(big.Int).Lsh(big.NewInt(1), 129)
	if _, err := orderID(addr(0x11), wide, hash(0x22), 2_000, hash(0x33), 1); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("got %v, want %v", err, ErrAmountOverflow)
	}
}

func TestFillIDSensitivity(t *testing.T) {
	oid := hash(0x44)
	taker := addr(0x55)

	base, err := fillID(oid, taker, big.NewInt(200), 1_700_000_000, 1_000)
	if err != nil {
		t.Fatalf("fill id: %v", err)
	}
	byAmount, err := fillID(oid, taker, big.NewInt(201), 1_700_000_000, 1_000)
	if err != nil {
		t.Fatalf("fill id: %v", err)
	}
	byTime, err := fillID(oid, taker, big.NewInt(200), 1_700_000_001, 1_000)
	if err != nil {
		t.Fatalf("fill id: %v", err)
	}
	byHeight, err := fillID(oid, taker, big.NewInt(200), 1_700_000_000, 1_001)
	if err != nil {
		t.Fatalf("fill id: %v", err)
	}
	if base == byAmount || base == byTime || base == byHeight {
		t.Fatalf("fill id insensitive to a defining parameter")
	}
}

func TestEscrowIDSensitivity(t *testing.T) {
	oid := hash(0x66)
	fid := hash(0x77)

	base := escrowID(oid, fid, 1_700_000_000, 1)
	if base == escrowID(oid, fid, 1_700_000_000, 2) {
		t.Fatalf("escrow id insensitive to counter")
	}
	if base == escrowID(oid, fid, 1_700_000_001, 1) {
		t.Fatalf("escrow id insensitive to timestamp")
	}
	if base == escrowID(oid, hash(0x78), 1_700_000_000, 1) {
		t.Fatalf("escrow id insensitive to fill id")
	}
}

func TestAmountLE16(t *testing.T) {
	encoded, err := amountLE16(big.NewInt(0x0102))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded[0] != 0x02 || encoded[1] != 0x01 {
		t.Fatalf("not little-endian: % x", encoded)
	}
	for _, b := range encoded[2:] {
		if b != 0 {
			t.Fatalf("padding not zero: % x", encoded)
		}
	}
}
