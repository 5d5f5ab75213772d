package types

import "math/big"

// Account tracks the native balance held by an address. The settlement engine
// moves value between accounts and the module vault through this record.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}
