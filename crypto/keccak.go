// Package crypto provides the single hash primitive the engine needs
// natively: Keccak-256 for the KECCAK256 opcode and CREATE2 address
// derivation. Signature recovery, BLS/BN254 pairings, and KZG commitments
// are inner-crypto concerns the spec places out of scope (SPEC_FULL.md
// §4) and are left to precompile implementations a host wires in.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/evmcore/evmcore/types"
)

// Keccak256 returns the Keccak-256 digest of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash is Keccak256 wrapped as a types.Hash.
func Keccak256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(Keccak256(data...))
}

// CreateAddress derives the address of a contract deployed by CREATE:
// the low 20 bytes of keccak256(rlpEncode(sender, nonce)). RLP-encoding a
// single (address, uint64) pair is simple enough to inline rather than
// pull in a general RLP codec the rest of the engine never needs.
func CreateAddress(sender types.Address, nonce uint64) types.Address {
	nonceBytes := minimalBigEndian(nonce)
	payload := rlpList(rlpBytes(sender.Bytes()), rlpBytes(nonceBytes))
	return types.BytesToAddress(Keccak256(payload))
}

// CreateAddress2 derives the CREATE2 address: low 20 bytes of
// keccak256(0xff ++ sender ++ salt ++ keccak256(initCode)).
func CreateAddress2(sender types.Address, salt [32]byte, initCodeHash []byte) types.Address {
	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, sender.Bytes()...)
	buf = append(buf, salt[:]...)
	buf = append(buf, initCodeHash...)
	return types.BytesToAddress(Keccak256(buf))
}

func minimalBigEndian(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	return append(rlpLenPrefix(0x80, len(b)), b...)
}

func rlpList(items ...[]byte) []byte {
	var body []byte
	for _, it := range items {
		body = append(body, it...)
	}
	return append(rlpLenPrefix(0xc0, len(body)), body...)
}

func rlpLenPrefix(base byte, n int) []byte {
	if n < 56 {
		return []byte{base + byte(n)}
	}
	lenBytes := minimalBigEndian(uint64(n))
	return append([]byte{base + 55 + byte(len(lenBytes))}, lenBytes...)
}
