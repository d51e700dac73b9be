package vm

import (
	"crypto/sha256"
	"errors"
	"math/big"

	"golang.org/x/crypto/ripemd160"

	"github.com/evmcore/evmcore/types"
)

// PrecompiledContract is the interface C7 requires of every native
// contract at a reserved low address (spec.md §4.C7).
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// ErrPrecompileNotImplemented names the precompiles this engine does not
// implement (SPEC_FULL.md §4's "inner crypto not in scope" decision):
// ECRECOVER (secp256k1 recovery), BN254 ADD/MUL/PAIRING, BLAKE2F
// compression, and the Cancun KZG point evaluation precompile all need
// cryptographic primitives the engine has no dependency for. No code path
// returns it: those addresses are simply absent from the registry. A host
// that needs them registers its own implementation through
// WithExtraPrecompiles.
var ErrPrecompileNotImplemented = errors.New("vm: precompile not implemented")

// basePrecompiles is the built-in registry (spec.md §4.C7 "Registry"):
// SHA256, RIPEMD160, IDENTITY and MODEXP at 0x02-0x05, the same set for
// every hardfork (rules is not consulted). Addresses 0x01 and 0x06 upward
// are not registered, so calls to them run as ordinary accounts.
func basePrecompiles(rules Rules) map[types.Address]PrecompiledContract {
	m := map[types.Address]PrecompiledContract{
		precompileAddr(2): &sha256Precompile{},
		precompileAddr(3): &ripemd160Precompile{},
		precompileAddr(4): &identityPrecompile{},
		precompileAddr(5): &modExpPrecompile{},
	}
	return m
}

func precompileAddr(n byte) types.Address {
	return types.BytesToAddress([]byte{n})
}

// lookupPrecompile resolves addr against the active hardfork's precompile
// set, consulting the process-wide extraPrecompiles override map (if set)
// first so a host can shadow or extend the registry (SPEC_FULL.md §11 "L2
// precompile extensions").
func lookupPrecompile(rules Rules, addr types.Address) (PrecompiledContract, bool) {
	if extra := extraPrecompiles; extra != nil {
		if pc, ok := extra[addr]; ok {
			return pc, true
		}
	}
	pc, ok := basePrecompiles(rules)[addr]
	return pc, ok
}

// extraPrecompiles is process-wide because PrecompiledContract
// implementations are stateless; a host wanting per-instance overrides
// should register distinct addresses instead. Set via
// WithExtraPrecompiles before constructing any EVM.
var extraPrecompiles map[types.Address]PrecompiledContract

// WithExtraPrecompiles installs host-provided precompiles (e.g. an L2's
// custom address-0x100 contract, or a real ECRECOVER/BN254 backend) ahead
// of the base registry.
func WithExtraPrecompiles(m map[types.Address]PrecompiledContract) {
	extraPrecompiles = m
}

// runPrecompile charges p's required gas against gas and runs it,
// returning the output and gas remaining afterward (spec.md §4.C7).
func runPrecompile(p PrecompiledContract, input []byte, gas uint64) ([]byte, uint64, error) {
	cost := p.RequiredGas(input)
	if cost > gas {
		return nil, 0, ErrOutOfGas
	}
	out, err := p.Run(input)
	return out, gas - cost, err
}

func wordCount(size int) uint64 {
	if size == 0 {
		return 0
	}
	return uint64((size + 31) / 32)
}

func padRight(data []byte, minLen int) []byte {
	if len(data) >= minLen {
		return data
	}
	padded := make([]byte, minLen)
	copy(padded, data)
	return padded
}

// --- IDENTITY (0x04) ---

type identityPrecompile struct{}

func (identityPrecompile) RequiredGas(input []byte) uint64 {
	return 15 + 3*wordCount(len(input))
}

func (identityPrecompile) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

// --- SHA256 (0x02) ---

type sha256Precompile struct{}

func (sha256Precompile) RequiredGas(input []byte) uint64 {
	return 60 + 12*wordCount(len(input))
}

func (sha256Precompile) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// --- RIPEMD160 (0x03) ---

type ripemd160Precompile struct{}

func (ripemd160Precompile) RequiredGas(input []byte) uint64 {
	return 600 + 120*wordCount(len(input))
}

func (ripemd160Precompile) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	digest := h.Sum(nil)
	out := make([]byte, 32)
	copy(out[12:], digest)
	return out, nil
}

// --- MODEXP (0x05) ---

type modExpPrecompile struct{}

// RequiredGas always applies the EIP-2565 (Berlin+) divisor-of-3 formula;
// PrecompiledContract.RequiredGas carries no Rules, so the pre-Berlin
// divisor-of-20 MODEXP pricing is not modeled: pre-Berlin hardforks are
// priced with this same formula.
func (modExpPrecompile) RequiredGas(input []byte) uint64 {
	input = padRight(input, 96)
	baseLen := new(big.Int).SetBytes(input[0:32]).Uint64()
	expLen := new(big.Int).SetBytes(input[32:64]).Uint64()
	modLen := new(big.Int).SetBytes(input[64:96]).Uint64()

	maxLen := baseLen
	if modLen > maxLen {
		maxLen = modLen
	}
	words := (maxLen + 7) / 8
	multComplexity := words * words

	var adjExpLen uint64 = 1
	if expLen > 0 {
		data := input[96:]
		expStart := baseLen
		if expStart < uint64(len(data)) {
			exp := getSlice(data, expStart, minU64(expLen, 32))
			bits := new(big.Int).SetBytes(exp).BitLen()
			if bits > 0 {
				adjExpLen = uint64(bits - 1)
			} else {
				adjExpLen = 0
			}
			if expLen > 32 {
				adjExpLen += 8 * (expLen - 32)
			}
		}
	}
	if adjExpLen < 1 {
		adjExpLen = 1
	}

	gas := multComplexity * adjExpLen / 3
	if gas < 200 {
		gas = 200
	}
	return gas
}

func (modExpPrecompile) Run(input []byte) ([]byte, error) {
	input = padRight(input, 96)
	baseLen := new(big.Int).SetBytes(input[0:32]).Uint64()
	expLen := new(big.Int).SetBytes(input[32:64]).Uint64()
	modLen := new(big.Int).SetBytes(input[64:96]).Uint64()

	data := input[96:]
	base := getSlice(data, 0, baseLen)
	exp := getSlice(data, baseLen, expLen)
	mod := getSlice(data, baseLen+expLen, modLen)

	modVal := new(big.Int).SetBytes(mod)
	if modVal.Sign() == 0 {
		return make([]byte, modLen), nil
	}
	baseVal := new(big.Int).SetBytes(base)
	expVal := new(big.Int).SetBytes(exp)
	result := new(big.Int).Exp(baseVal, expVal, modVal)

	out := result.Bytes()
	padded := make([]byte, modLen)
	copy(padded[modLen-uint64(len(out)):], out)
	return padded, nil
}

func getSlice(data []byte, start, length uint64) []byte {
	out := make([]byte, length)
	if start >= uint64(len(data)) {
		return out
	}
	end := start + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[start:end])
	return out
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
