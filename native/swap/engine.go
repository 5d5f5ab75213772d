package swap

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"crossfill/core/events"
	"crossfill/core/types"
)

var (
	errNilState = errors.New("swap engine: state not configured")
)

// engineState is the host-ledger surface the engine depends on: durable
// records plus account balances. The core/state.Manager implements it over a
// KV database; tests substitute an in-memory mock.
type engineState interface {
	OrderPut(*Order) error
	OrderGet(id [32]byte) (*Order, bool)
	FillPut(*Fill) error
	FillGet(id [32]byte) (*Fill, bool)
	OrderFillsAppend(orderID, fillID [32]byte) error
	OrderFills(orderID [32]byte) ([][32]byte, error)
	ProtocolGet() (*ProtocolState, bool, error)
	ProtocolPut(*ProtocolState) error
	CrossAddressPut(account [20]byte, addr *CrossChainAddress) error
	CrossAddressGet(account [20]byte) (*CrossChainAddress, bool, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type swapEvent struct {
	evt *types.Event
}

func (e swapEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e swapEvent) Event() *types.Event { return e.evt }

// VaultAddress is the module account that holds all escrowed value between
// order creation and withdrawal or refund.
var VaultAddress = func() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("crossfill/swap/vault"))[12:])
	return addr
}()

// Engine implements the order/fill settlement state machine. The hosting
// environment serializes calls, so the engine holds no locks; each operation
// validates and computes everything before mutating state, and value moves
// before records are persisted, keeping every operation all-or-nothing.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	nowFn    func() int64
	heightFn func() uint64
}

// NewEngine creates a settlement engine with a no-op emitter and wall-clock
// ledger time (height in seconds). Hosts override both as needed.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		heightFn: func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the timestamp source. Primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetHeightFunc overrides the ledger-height source used for timelock
// comparisons. Primarily for tests.
func (e *Engine) SetHeightFunc(height func() uint64) {
	if height == nil {
		e.heightFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.heightFn = height
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(swapEvent{evt: event})
}

func (e *Engine) now() int64     { return e.nowFn() }
func (e *Engine) height() uint64 { return e.heightFn() }

// Initialize persists the genesis protocol state when none exists yet. It is
// idempotent: an already-initialized engine keeps its stored configuration.
func (e *Engine) Initialize(state *ProtocolState) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if state == nil {
		return fmt.Errorf("swap engine: nil protocol state")
	}
	_, ok, err := e.state.ProtocolGet()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if state.FeeRateBps > maxFeeRateBps {
		return ErrFeeRateTooHigh
	}
	if state.MinTimelock == 0 || state.MaxTimelock <= state.MinTimelock {
		return fmt.Errorf("swap engine: invalid timelock window")
	}
	return e.state.ProtocolPut(state.Clone())
}

func (e *Engine) protocol() (*ProtocolState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	state, ok, err := e.state.ProtocolGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("swap engine: protocol state not initialized")
	}
	return state, nil
}

func (e *Engine) loadOrder(id [32]byte) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, ok := e.state.OrderGet(id)
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (e *Engine) loadFill(id [32]byte) (*Fill, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	fill, ok := e.state.FillGet(id)
	if !ok {
		return nil, ErrFillNotFound
	}
	return fill, nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// transfer moves native value between accounts. Failure aborts the enclosing
// operation; callers sequence it before any record mutation is persisted.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	// A self-transfer must not touch state: debiting and crediting two
	// independent copies of the same account would let the credit overwrite
	// the debit and mint the amount.
	if from == to {
		acc, err := e.state.GetAccount(from[:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		if ensureAccount(acc).Balance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: insufficient balance", ErrTransferFailed)
		}
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: insufficient balance", ErrTransferFailed)
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.PutAccount(to[:], toAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// CreateOrder escrows deposit under the supplied hashlock and timelock and
// persists a new order. The deposit must cover params.TotalAmount (gross);
// the stored order records the net amount with the protocol fee split off.
func (e *Engine) CreateOrder(maker [20]byte, deposit *big.Int, params OrderParams) ([32]byte, error) {
	var zero [32]byte
	if maker == VaultAddress {
		return zero, ErrReservedAddress
	}
	state, err := e.protocol()
	if err != nil {
		return zero, err
	}
	height := e.height()
	if err := validateOrderParams(params, height, state.MinTimelock, state.MaxTimelock); err != nil {
		return zero, err
	}
	if err := checkAmount(deposit); err != nil {
		return zero, err
	}
	if deposit.Sign() == 0 || deposit.Cmp(params.TotalAmount) < 0 {
		return zero, ErrInsufficientDeposit
	}
	net, fee, err := ComputeFee(params.TotalAmount, state.FeeRateBps)
	if err != nil {
		return zero, err
	}
	state.OrderCounter++
	id, err := orderID(maker, net, params.Hashlock, params.Timelock, params.SwapID, state.OrderCounter)
	if err != nil {
		return zero, err
	}
	if _, exists := e.state.OrderGet(id); exists {
		return zero, ErrOrderExists
	}
	accumulated, err := addChecked(state.AccumulatedFees, fee)
	if err != nil {
		return zero, err
	}
	state.AccumulatedFees = accumulated

	order := &Order{
		ID:                   id,
		Maker:                maker,
		TotalAmount:          net,
		FilledAmount:         big.NewInt(0),
		MinFillAmount:        cloneBigInt(params.MinFillAmount),
		Hashlock:             params.Hashlock,
		Timelock:             params.Timelock,
		SwapID:               params.SwapID,
		SourceChain:          params.SourceChain,
		DestChain:            params.DestChain,
		DestAmountPerUnit:    cloneBigInt(params.DestAmountPerUnit),
		Fee:                  fee,
		AllowPartialFills:    params.AllowPartialFills,
		MaxFills:             params.MaxFills,
		MakerCrossAddress:    append([]byte(nil), params.MakerCrossAddress...),
		ReceiverCrossAddress: append([]byte(nil), params.ReceiverCrossAddress...),
		CreatedAt:            e.now(),
	}

	// The gross deposit moves into the vault before any record persists, so
	// a failed debit leaves no trace of the order.
	if err := e.transfer(maker, VaultAddress, params.TotalAmount); err != nil {
		return zero, err
	}
	if err := e.state.OrderPut(order); err != nil {
		return zero, err
	}
	if err := e.state.ProtocolPut(state); err != nil {
		return zero, err
	}
	e.emit(NewOrderCreatedEvent(order))
	return id, nil
}

// FillOrder claims a portion of an order for the taker. Over-large requests
// are clamped to the remaining amount; the returned fill id identifies the
// claim for later withdrawal or refund.
func (e *Engine) FillOrder(id [32]byte, taker [20]byte, requested *big.Int, receiver [20]byte) ([32]byte, error) {
	var zero [32]byte
	if taker == VaultAddress || receiver == VaultAddress {
		return zero, ErrReservedAddress
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return zero, err
	}
	height := e.height()
	if err := validateFillRequest(order, requested, height); err != nil {
		return zero, err
	}
	amount, err := clampFillAmount(order, requested)
	if err != nil {
		return zero, err
	}
	state, err := e.protocol()
	if err != nil {
		return zero, err
	}
	now := e.now()
	fid, err := fillID(id, taker, amount, now, height)
	if err != nil {
		return zero, err
	}
	if _, exists := e.state.FillGet(fid); exists {
		return zero, ErrFillExists
	}
	state.FillCounter++
	eid := escrowID(id, fid, now, state.FillCounter)
	destAmount, err := DestAmount(amount, order.DestAmountPerUnit)
	if err != nil {
		return zero, err
	}
	filled, err := addChecked(order.FilledAmount, amount)
	if err != nil {
		return zero, err
	}
	order.FilledAmount = filled
	order.CurrentFills++

	fill := &Fill{
		ID:         fid,
		OrderID:    id,
		Taker:      taker,
		Receiver:   receiver,
		FillAmount: amount,
		EscrowID:   eid,
		CreatedAt:  now,
	}
	if err := e.state.FillPut(fill); err != nil {
		return zero, err
	}
	if err := e.state.OrderPut(order); err != nil {
		return zero, err
	}
	if err := e.state.OrderFillsAppend(id, fid); err != nil {
		return zero, err
	}
	if err := e.state.ProtocolPut(state); err != nil {
		return zero, err
	}
	e.emit(NewOrderFilledEvent(order, fill, destAmount))
	return fid, nil
}

// WithdrawFill releases a fill's funds to its taker in exchange for the
// hashlock preimage. Only valid while the order's timelock has not expired.
func (e *Engine) WithdrawFill(id [32]byte, caller [20]byte, preimage [32]byte) error {
	fill, err := e.loadFill(id)
	if err != nil {
		return err
	}
	order, err := e.loadOrder(fill.OrderID)
	if err != nil {
		return err
	}
	if err := validateWithdraw(fill, order, caller, e.height()); err != nil {
		return err
	}
	if err := verifyPreimage(order.Hashlock, preimage); err != nil {
		return err
	}
	if err := e.transfer(VaultAddress, fill.Taker, fill.FillAmount); err != nil {
		return err
	}
	fill.Withdrawn = true
	secret := preimage
	fill.Preimage = &secret
	if err := e.state.FillPut(fill); err != nil {
		return err
	}
	e.emit(NewFillWithdrawnEvent(fill, preimage))
	return nil
}

// RefundFill returns a fill's funds to the order's maker after the timelock
// expires, restoring the order's fill capacity for the refunded amount.
func (e *Engine) RefundFill(id [32]byte, caller [20]byte) error {
	fill, err := e.loadFill(id)
	if err != nil {
		return err
	}
	order, err := e.loadOrder(fill.OrderID)
	if err != nil {
		return err
	}
	if err := validateRefund(fill, order, caller, e.height()); err != nil {
		return err
	}
	filled, err := subChecked(order.FilledAmount, fill.FillAmount)
	if err != nil {
		return err
	}
	if order.CurrentFills == 0 {
		return fmt.Errorf("%w: order has no open fills", ErrAlreadySettled)
	}
	if err := e.transfer(VaultAddress, order.Maker, fill.FillAmount); err != nil {
		return err
	}
	fill.Refunded = true
	order.FilledAmount = filled
	order.CurrentFills--
	if err := e.state.FillPut(fill); err != nil {
		return err
	}
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(NewFillRefundedEvent(fill, order.Maker))
	return nil
}

// CancelOrder marks the order terminal and returns the never-claimed
// remainder to the maker. Fills already created keep their own
// withdraw/refund lifecycle.
func (e *Engine) CancelOrder(id [32]byte, caller [20]byte) error {
	order, err := e.loadOrder(id)
	if err != nil {
		return err
	}
	if caller != order.Maker {
		return ErrUnauthorized
	}
	if order.Cancelled {
		return ErrOrderCancelled
	}
	remaining := order.Remaining()
	if remaining.Sign() > 0 {
		if err := e.transfer(VaultAddress, order.Maker, remaining); err != nil {
			return err
		}
	}
	order.Cancelled = true
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(NewOrderCancelledEvent(order))
	return nil
}

// SetFeeRate updates the protocol fee rate. Admin only; capped at 1000 bps.
func (e *Engine) SetFeeRate(caller [20]byte, rateBps uint32) error {
	state, err := e.protocol()
	if err != nil {
		return err
	}
	if caller != state.Admin {
		return ErrUnauthorized
	}
	if rateBps > maxFeeRateBps {
		return ErrFeeRateTooHigh
	}
	state.FeeRateBps = rateBps
	if err := e.state.ProtocolPut(state); err != nil {
		return err
	}
	e.emit(NewFeeRateUpdatedEvent(rateBps))
	return nil
}

// SweepFees transfers the accumulated protocol fees to the admin. The
// accumulator is zeroed optimistically and restored if the transfer fails;
// this is the engine's single compensating rollback, because the transfer is
// the last step and its failure must not destroy the fee record.
func (e *Engine) SweepFees(caller [20]byte) error {
	state, err := e.protocol()
	if err != nil {
		return err
	}
	if caller != state.Admin {
		return ErrUnauthorized
	}
	fees := cloneBigInt(state.AccumulatedFees)
	if fees.Sign() == 0 {
		return ErrNoAccruedFees
	}
	state.AccumulatedFees = big.NewInt(0)
	if err := e.state.ProtocolPut(state); err != nil {
		return err
	}
	if err := e.transfer(VaultAddress, state.Admin, fees); err != nil {
		state.AccumulatedFees = fees
		if restoreErr := e.state.ProtocolPut(state); restoreErr != nil {
			return fmt.Errorf("restoring fee accumulator after failed sweep: %v: %w", restoreErr, err)
		}
		return err
	}
	e.emit(NewFeesSweptEvent(state.Admin, fees))
	return nil
}

// UpdateAdmin hands protocol administration to a new identity.
func (e *Engine) UpdateAdmin(caller, next [20]byte) error {
	state, err := e.protocol()
	if err != nil {
		return err
	}
	if caller != state.Admin {
		return ErrUnauthorized
	}
	state.Admin = next
	return e.state.ProtocolPut(state)
}

// --- Read accessors ---

// GetOrder returns a copy of the order record.
func (e *Engine) GetOrder(id [32]byte) (*Order, error) {
	return e.loadOrder(id)
}

// GetFill returns a copy of the fill record.
func (e *Engine) GetFill(id [32]byte) (*Fill, error) {
	return e.loadFill(id)
}

// OrderExists reports whether an order id is known.
func (e *Engine) OrderExists(id [32]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	_, ok := e.state.OrderGet(id)
	return ok
}

// OrderFills lists the fill ids recorded against an order, oldest first.
func (e *Engine) OrderFills(id [32]byte) ([][32]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.OrderFills(id)
}

// RemainingAmount reports the unclaimed amount of an order; zero for unknown,
// cancelled, or completed orders.
func (e *Engine) RemainingAmount(id [32]byte) *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	order, ok := e.state.OrderGet(id)
	if !ok || order.Cancelled {
		return big.NewInt(0)
	}
	return order.Remaining()
}

// IsOrderComplete reports whether the order's total has been fully claimed.
func (e *Engine) IsOrderComplete(id [32]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	order, ok := e.state.OrderGet(id)
	if !ok {
		return false
	}
	return order.FilledAmount.Cmp(order.TotalAmount) >= 0
}

// FillSecret returns the revealed preimage of a withdrawn fill, or nil when
// no secret has been revealed yet.
func (e *Engine) FillSecret(id [32]byte) (*[32]byte, error) {
	fill, err := e.loadFill(id)
	if err != nil {
		return nil, err
	}
	if fill.Preimage == nil {
		return nil, nil
	}
	secret := *fill.Preimage
	return &secret, nil
}

// Admin returns the configured protocol admin.
func (e *Engine) Admin() ([20]byte, error) {
	state, err := e.protocol()
	if err != nil {
		return [20]byte{}, err
	}
	return state.Admin, nil
}

// FeeRateBps returns the current protocol fee rate.
func (e *Engine) FeeRateBps() (uint32, error) {
	state, err := e.protocol()
	if err != nil {
		return 0, err
	}
	return state.FeeRateBps, nil
}

// AccumulatedFees returns the protocol fees collected and not yet swept.
func (e *Engine) AccumulatedFees() (*big.Int, error) {
	state, err := e.protocol()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(state.AccumulatedFees), nil
}
