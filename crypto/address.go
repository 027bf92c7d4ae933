package crypto

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix is the human-readable part prepended to encoded addresses.
type AddressPrefix string

const (
	// UserPrefix marks externally owned accounts interacting with the ledger.
	UserPrefix AddressPrefix = "lend"
	// ModulePrefix marks addresses owned by protocol modules (pool treasury,
	// collateral vault).
	ModulePrefix AddressPrefix = "lendm"
)

const addressLength = 20

// Address represents a 20-byte account identifier with a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	raw    []byte
}

// NewAddress wraps the provided 20-byte payload. It panics on malformed input
// because addresses are only ever constructed from validated sources.
func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != addressLength {
		panic("crypto: address must be 20 bytes")
	}
	cloned := append([]byte(nil), b...)
	return Address{prefix: prefix, raw: cloned}
}

// Bytes returns the raw 20-byte payload.
func (a Address) Bytes() []byte { return a.raw }

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix { return a.prefix }

// IsZero reports whether the address is unset or all-zero.
func (a Address) IsZero() bool {
	if len(a.raw) == 0 {
		return true
	}
	for _, b := range a.raw {
		if b != 0 {
			return false
		}
	}
	return true
}

// Equal compares the raw payloads, ignoring the prefix.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a.raw, other.raw)
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.raw, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodeAddress parses a bech32 encoded address string.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != addressLength {
		return Address{}, fmt.Errorf("address payload must be %d bytes", addressLength)
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}
