package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"crossfill/core/types"
	"crossfill/native/swap"
	"crossfill/storage"
)

// Manager persists settlement records in a key-value database. Keys are
// keccak256 digests of a byte prefix plus the record identifier; values are
// RLP. It implements the swap engine's state interface.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	orderPrefix      = []byte("swap/order/")
	fillPrefix       = []byte("swap/fill/")
	orderFillsPrefix = []byte("swap/order-fills/")
	crossAddrPrefix  = []byte("swap/xaddr/")
	accountPrefix    = []byte("account/")
	protocolStateKey = ethcrypto.Keccak256([]byte("swap/protocol"))
)

func prefixedKey(prefix, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) read(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) write(key []byte, in interface{}) error {
	encoded, err := rlp.EncodeToBytes(in)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// RLP cannot express signed integers or nil pointers inside optional slots,
// so records cross the storage boundary through explicit structs: timestamps
// widen to uint64 and the revealed secret carries a presence flag.

type storedOrder struct {
	Maker                [20]byte
	TotalAmount          *big.Int
	FilledAmount         *big.Int
	MinFillAmount        *big.Int
	Hashlock             [32]byte
	Timelock             uint64
	Cancelled            bool
	SwapID               [32]byte
	SourceChain          uint32
	DestChain            uint32
	DestAmountPerUnit    *big.Int
	Fee                  *big.Int
	AllowPartialFills    bool
	MaxFills             uint32
	CurrentFills         uint32
	MakerCrossAddress    []byte
	ReceiverCrossAddress []byte
	CreatedAt            uint64
}

type storedFill struct {
	OrderID     [32]byte
	Taker       [20]byte
	Receiver    [20]byte
	FillAmount  *big.Int
	EscrowID    [32]byte
	Withdrawn   bool
	Refunded    bool
	HasPreimage bool
	Preimage    [32]byte
	CreatedAt   uint64
}

type storedProtocolState struct {
	Admin           [20]byte
	FeeRateBps      uint32
	AccumulatedFees *big.Int
	MinTimelock     uint64
	MaxTimelock     uint64
	OrderCounter    uint64
	FillCounter     uint64
}

type storedCrossAddress struct {
	Kind uint8
	Raw  []byte
}

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// OrderPut validates and persists an order record.
func (m *Manager) OrderPut(order *swap.Order) error {
	sanitized, err := swap.SanitizeOrder(order)
	if err != nil {
		return err
	}
	record := &storedOrder{
		Maker:                sanitized.Maker,
		TotalAmount:          sanitized.TotalAmount,
		FilledAmount:         sanitized.FilledAmount,
		MinFillAmount:        sanitized.MinFillAmount,
		Hashlock:             sanitized.Hashlock,
		Timelock:             sanitized.Timelock,
		Cancelled:            sanitized.Cancelled,
		SwapID:               sanitized.SwapID,
		SourceChain:          uint32(sanitized.SourceChain),
		DestChain:            uint32(sanitized.DestChain),
		DestAmountPerUnit:    sanitized.DestAmountPerUnit,
		Fee:                  sanitized.Fee,
		AllowPartialFills:    sanitized.AllowPartialFills,
		MaxFills:             sanitized.MaxFills,
		CurrentFills:         sanitized.CurrentFills,
		MakerCrossAddress:    sanitized.MakerCrossAddress,
		ReceiverCrossAddress: sanitized.ReceiverCrossAddress,
		CreatedAt:            uint64(sanitized.CreatedAt),
	}
	return m.write(prefixedKey(orderPrefix, sanitized.ID[:]), record)
}

// OrderGet loads an order record by id.
func (m *Manager) OrderGet(id [32]byte) (*swap.Order, bool) {
	record := new(storedOrder)
	ok, err := m.read(prefixedKey(orderPrefix, id[:]), record)
	if err != nil || !ok {
		return nil, false
	}
	return &swap.Order{
		ID:                   id,
		Maker:                record.Maker,
		TotalAmount:          record.TotalAmount,
		FilledAmount:         record.FilledAmount,
		MinFillAmount:        record.MinFillAmount,
		Hashlock:             record.Hashlock,
		Timelock:             record.Timelock,
		Cancelled:            record.Cancelled,
		SwapID:               record.SwapID,
		SourceChain:          swap.ChainID(record.SourceChain),
		DestChain:            swap.ChainID(record.DestChain),
		DestAmountPerUnit:    record.DestAmountPerUnit,
		Fee:                  record.Fee,
		AllowPartialFills:    record.AllowPartialFills,
		MaxFills:             record.MaxFills,
		CurrentFills:         record.CurrentFills,
		MakerCrossAddress:    record.MakerCrossAddress,
		ReceiverCrossAddress: record.ReceiverCrossAddress,
		CreatedAt:            int64(record.CreatedAt),
	}, true
}

// FillPut validates and persists a fill record.
func (m *Manager) FillPut(fill *swap.Fill) error {
	sanitized, err := swap.SanitizeFill(fill)
	if err != nil {
		return err
	}
	record := &storedFill{
		OrderID:    sanitized.OrderID,
		Taker:      sanitized.Taker,
		Receiver:   sanitized.Receiver,
		FillAmount: sanitized.FillAmount,
		EscrowID:   sanitized.EscrowID,
		Withdrawn:  sanitized.Withdrawn,
		Refunded:   sanitized.Refunded,
		CreatedAt:  uint64(sanitized.CreatedAt),
	}
	if sanitized.Preimage != nil {
		record.HasPreimage = true
		record.Preimage = *sanitized.Preimage
	}
	return m.write(prefixedKey(fillPrefix, sanitized.ID[:]), record)
}

// FillGet loads a fill record by id.
func (m *Manager) FillGet(id [32]byte) (*swap.Fill, bool) {
	record := new(storedFill)
	ok, err := m.read(prefixedKey(fillPrefix, id[:]), record)
	if err != nil || !ok {
		return nil, false
	}
	fill := &swap.Fill{
		ID:         id,
		OrderID:    record.OrderID,
		Taker:      record.Taker,
		Receiver:   record.Receiver,
		FillAmount: record.FillAmount,
		EscrowID:   record.EscrowID,
		Withdrawn:  record.Withdrawn,
		Refunded:   record.Refunded,
		CreatedAt:  int64(record.CreatedAt),
	}
	if record.HasPreimage {
		preimage := record.Preimage
		fill.Preimage = &preimage
	}
	return fill, true
}

// OrderFillsAppend adds a fill id to an order's fill index.
func (m *Manager) OrderFillsAppend(orderID, fillID [32]byte) error {
	list, err := m.OrderFills(orderID)
	if err != nil {
		return err
	}
	list = append(list, fillID)
	return m.write(prefixedKey(orderFillsPrefix, orderID[:]), list)
}

// OrderFills lists the fill ids recorded against an order, oldest first.
func (m *Manager) OrderFills(orderID [32]byte) ([][32]byte, error) {
	var list [][32]byte
	if _, err := m.read(prefixedKey(orderFillsPrefix, orderID[:]), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ProtocolPut persists the protocol singleton.
func (m *Manager) ProtocolPut(state *swap.ProtocolState) error {
	if state == nil {
		return fmt.Errorf("nil protocol state")
	}
	clone := state.Clone()
	if clone.AccumulatedFees.Sign() < 0 {
		return fmt.Errorf("negative fee accumulator")
	}
	record := &storedProtocolState{
		Admin:           clone.Admin,
		FeeRateBps:      clone.FeeRateBps,
		AccumulatedFees: clone.AccumulatedFees,
		MinTimelock:     clone.MinTimelock,
		MaxTimelock:     clone.MaxTimelock,
		OrderCounter:    clone.OrderCounter,
		FillCounter:     clone.FillCounter,
	}
	return m.write(protocolStateKey, record)
}

// ProtocolGet loads the protocol singleton; ok is false before genesis.
func (m *Manager) ProtocolGet() (*swap.ProtocolState, bool, error) {
	record := new(storedProtocolState)
	ok, err := m.read(protocolStateKey, record)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &swap.ProtocolState{
		Admin:           record.Admin,
		FeeRateBps:      record.FeeRateBps,
		AccumulatedFees: record.AccumulatedFees,
		MinTimelock:     record.MinTimelock,
		MaxTimelock:     record.MaxTimelock,
		OrderCounter:    record.OrderCounter,
		FillCounter:     record.FillCounter,
	}, true, nil
}

// CrossAddressPut records an account's counterpart-ledger address.
func (m *Manager) CrossAddressPut(account [20]byte, addr *swap.CrossChainAddress) error {
	if addr == nil || !addr.Valid() {
		return fmt.Errorf("invalid cross-chain address")
	}
	record := &storedCrossAddress{Kind: uint8(addr.Kind), Raw: addr.Raw}
	return m.write(prefixedKey(crossAddrPrefix, account[:]), record)
}

// CrossAddressGet loads an account's counterpart-ledger address.
func (m *Manager) CrossAddressGet(account [20]byte) (*swap.CrossChainAddress, bool, error) {
	record := new(storedCrossAddress)
	ok, err := m.read(prefixedKey(crossAddrPrefix, account[:]), record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &swap.CrossChainAddress{Kind: swap.CrossChainAddressKind(record.Kind), Raw: record.Raw}, true, nil
}

// GetAccount loads the account record for an address, returning a zero-value
// account when none is stored yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("address must not be empty")
	}
	record := new(storedAccount)
	ok, err := m.read(prefixedKey(accountPrefix, addr), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return &types.Account{Nonce: record.Nonce, Balance: record.Balance}, nil
}

// PutAccount persists the account record for an address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if account == nil {
		return fmt.Errorf("nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("negative balance")
	}
	record := &storedAccount{Nonce: account.Nonce, Balance: balance}
	return m.write(prefixedKey(accountPrefix, addr), record)
}
