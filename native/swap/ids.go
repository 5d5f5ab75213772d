package swap

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Identifier derivation. Orders, fills, and escrow correlation records all use
// 256-bit keccak digests over the little-endian fixed-width concatenation of
// their defining parameters. Order ids additionally mix in a post-increment
// counter so two otherwise identical creations can never collide; fill and
// escrow ids are disambiguated by ledger time, but the engine still treats a
// collision as a hard error instead of overwriting.

func le8(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func orderID(maker [20]byte, netAmount *big.Int, hashlock [32]byte, timelock uint64, swapID [32]byte, counter uint64) ([32]byte, error) {
	amount, err := amountLE16(netAmount)
	if err != nil {
		return [32]byte{}, err
	}
	data := make([]byte, 0, 20+16+32+8+32+8)
	data = append(data, maker[:]...)
	data = append(data, amount[:]...)
	data = append(data, hashlock[:]...)
	data = append(data, le8(timelock)...)
	data = append(data, swapID[:]...)
	data = append(data, le8(counter)...)
	return ethcrypto.Keccak256Hash(data), nil
}

func fillID(orderID [32]byte, taker [20]byte, fillAmount *big.Int, timestamp int64, height uint64) ([32]byte, error) {
	amount, err := amountLE16(fillAmount)
	if err != nil {
		return [32]byte{}, err
	}
	data := make([]byte, 0, 32+20+16+8+8)
	data = append(data, orderID[:]...)
	data = append(data, taker[:]...)
	data = append(data, amount[:]...)
	data = append(data, le8(uint64(timestamp))...)
	data = append(data, le8(height)...)
	return ethcrypto.Keccak256Hash(data), nil
}

func escrowID(orderID, fillID [32]byte, timestamp int64, counter uint64) [32]byte {
	data := make([]byte, 0, 32+32+8+8)
	data = append(data, orderID[:]...)
	data = append(data, fillID[:]...)
	data = append(data, le8(uint64(timestamp))...)
	data = append(data, le8(counter)...)
	return ethcrypto.Keccak256Hash(data)
}
