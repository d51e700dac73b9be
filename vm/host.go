package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/types"
)

// AccessStatus reports whether an address or storage slot was already
// warm (accessed earlier in the current transaction) before this access,
// per EIP-2929.
type AccessStatus int

const (
	Cold AccessStatus = iota
	Warm
)

// StorageResult is what SSTORE needs to decide gas cost and refund
// (spec.md §4.C5): the host owns the per-transaction "original value"
// bookkeeping (EIP-2200) since that persists across calls within one
// transaction, outside the engine's own frame-local state.
type StorageResult struct {
	Original uint256.Int
	Current  uint256.Int
	New      uint256.Int
	IsCold   bool
}

// BlockContext carries the read-only block/chain data every frame may
// read (spec.md §4.C5 "Context (read-only for the engine)").
type BlockContext struct {
	ChainID     *uint256.Int
	Coinbase    types.Address
	GasLimit    uint64
	BlockNumber uint64
	Time        uint64
	Difficulty  *uint256.Int // PREVRANDAO value post-Merge
	BaseFee     *uint256.Int
	BlobBaseFee *uint256.Int
}

// TxContext carries the read-only transaction data every frame may read.
type TxContext struct {
	Origin     types.Address
	GasPrice   *uint256.Int
	BlobHashes []types.Hash
}

// CallKind distinguishes the six ways C9 can be entered.
type CallKind int

const (
	CallKindCall CallKind = iota
	CallKindCallCode
	CallKindDelegateCall
	CallKindStaticCall
	CallKindCreate
	CallKindCreate2
)

func (k CallKind) String() string {
	switch k {
	case CallKindCall:
		return "call"
	case CallKindCallCode:
		return "callcode"
	case CallKindDelegateCall:
		return "delegatecall"
	case CallKindStaticCall:
		return "staticcall"
	case CallKindCreate:
		return "create"
	case CallKindCreate2:
		return "create2"
	default:
		return "unknown"
	}
}

// Snapshot is an opaque journal token (spec.md §4.C5 Journal).
type Snapshot any

// Host is the capability set the interpreter and call-frame manager call
// into for everything outside the engine's own stack/memory/gas state
// (spec.md §4.C5). The concrete implementation (a worldstate/trie, or a
// test double) lives entirely outside this package.
type Host interface {
	// Account state.
	Balance(addr types.Address) *uint256.Int
	Code(addr types.Address) []byte
	CodeHash(addr types.Address) types.Hash
	CodeSize(addr types.Address) int
	AccountExists(addr types.Address) bool
	Empty(addr types.Address) bool

	// Persistent and transient storage.
	SLoad(addr types.Address, key types.Hash) uint256.Int
	SStore(addr types.Address, key types.Hash, newValue uint256.Int) StorageResult
	TLoad(addr types.Address, key types.Hash) uint256.Int
	TStore(addr types.Address, key types.Hash, newValue uint256.Int)

	// EIP-2929 access list. AccessAddress/AccessStorageSlot both warm the
	// entry as a side effect (journaled) and report its status *before*
	// this access.
	AccessAddress(addr types.Address) AccessStatus
	AccessStorageSlot(addr types.Address, key types.Hash) AccessStatus

	// Logs.
	EmitLog(addr types.Address, topics []types.Hash, data []byte)

	// Blockhash, zero if out of the trailing-256-block window.
	BlockHash(number uint64) types.Hash

	BlockContext() BlockContext
	TxContext() TxContext

	// Balance mutation for value transfers driven by the call-frame
	// manager (C9). The host is responsible for atomicity with the
	// journal snapshot taken around the call.
	Transfer(from, to types.Address, value *uint256.Int) error

	// Account lifecycle for CREATE*/SELFDESTRUCT.
	CreateAccount(addr types.Address)
	SetCode(addr types.Address, code []byte)
	SetNonce(addr types.Address, nonce uint64)
	Nonce(addr types.Address) uint64
	SelfDestruct(addr types.Address, beneficiary types.Address) (createdThisTx bool)

	// Journal.
	Snapshot() Snapshot
	RevertToSnapshot(s Snapshot)
	// Commit discards a snapshot taken when the caller already knows the
	// subtree succeeded; journal-based hosts typically no-op this.
	Commit(s Snapshot)
}
