package swap

import "fmt"

// CrossChainAddressKind tags the encoding of a counterpart-ledger address.
type CrossChainAddressKind uint8

const (
	CrossChainAddressEthereum CrossChainAddressKind = iota
	CrossChainAddressSubstrate
	CrossChainAddressRaw
)

// CrossChainAddress is an account's address on a counterpart ledger. The
// registry is bookkeeping only: mapped addresses never gate settlement.
type CrossChainAddress struct {
	Kind CrossChainAddressKind
	Raw  []byte
}

// Clone returns a deep copy of the address record.
func (a *CrossChainAddress) Clone() *CrossChainAddress {
	if a == nil {
		return nil
	}
	return &CrossChainAddress{Kind: a.Kind, Raw: append([]byte(nil), a.Raw...)}
}

// Valid reports whether the payload width matches the declared kind.
func (a *CrossChainAddress) Valid() bool {
	if a == nil {
		return false
	}
	switch a.Kind {
	case CrossChainAddressEthereum:
		return len(a.Raw) == 20
	case CrossChainAddressSubstrate:
		return len(a.Raw) == 32
	case CrossChainAddressRaw:
		return len(a.Raw) > 0
	default:
		return false
	}
}

// MapAddress records the caller's address on a counterpart ledger.
func (e *Engine) MapAddress(caller [20]byte, addr CrossChainAddress) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !addr.Valid() {
		return fmt.Errorf("%w: kind %d with %d bytes", ErrInvalidCrossAddress, addr.Kind, len(addr.Raw))
	}
	if err := e.state.CrossAddressPut(caller, addr.Clone()); err != nil {
		return err
	}
	e.emit(NewAddressMappedEvent(caller, &addr))
	return nil
}

// CrossAddress returns the mapped counterpart-ledger address for an account.
func (e *Engine) CrossAddress(account [20]byte) (*CrossChainAddress, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.CrossAddressGet(account)
}
