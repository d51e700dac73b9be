// Package types defines the primitive identifiers the EVM engine operates
// on: addresses and hashes. It intentionally has no dependency on any
// particular worldstate or serialization library so the engine stays
// embeddable (see SPEC_FULL.md §4 — only an optional adapter package would
// ever bridge these to a concrete chain client's own types).
package types

import (
	"encoding/hex"
	"fmt"
)

const (
	// HashLength is the byte length of a Hash (256 bits).
	HashLength = 32
	// AddressLength is the byte length of an Address (160 bits).
	AddressLength = 20
)

// Hash is a 256-bit opaque identifier: code hashes, storage keys, log
// topics, block hashes.
type Hash [HashLength]byte

// Address is a 160-bit account identifier.
type Address [AddressLength]byte

// BytesToHash right-aligns b into a Hash, truncating from the left if
// b is longer than HashLength.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// SetBytes right-aligns b into h.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Bytes returns the big-endian byte representation of h.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// Hex returns the "0x"-prefixed hex representation of h.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// BytesToAddress right-aligns b into an Address, truncating from the left
// if b is longer than AddressLength.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// SetBytes right-aligns b into a.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// Bytes returns the big-endian byte representation of a.
func (a Address) Bytes() []byte { return a[:] }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// Hex returns the "0x"-prefixed hex representation of a.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// Hash returns a as a left-zero-padded Hash, the representation used when
// an address is pushed onto the EVM stack as a Word.
func (a Address) Hash() Hash {
	var h Hash
	copy(h[HashLength-AddressLength:], a[:])
	return h
}

// GoStringer-friendly formatting for test failure messages.
func (a Address) GoString() string { return fmt.Sprintf("types.Address(%s)", a.Hex()) }

// Log is a contract event emitted by LOG0..LOG4 (spec.md §4.C5 EmitLog).
// The engine only ever produces these; persistence and bloom-filter
// indexing are a host/chain-client concern.
type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

