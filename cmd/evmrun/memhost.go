package main

import (
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/crypto"
	"github.com/evmcore/evmcore/types"
	"github.com/evmcore/evmcore/vm"
)

// cliHost is a minimal in-memory vm.Host for evmrun, grounded on the
// teacher's core/state/memory_statedb.go map-of-accounts-plus-journal
// shape, simplified to a deep-copy snapshot since a one-shot CLI run never
// needs a real trie or persistence.
type cliHost struct {
	accounts       map[types.Address]*cliAccount
	accessedAddrs  map[types.Address]bool
	accessedSlots  map[types.Address]map[types.Hash]bool
	selfDestructed map[types.Address]types.Address
}

type cliAccount struct {
	balance   uint256.Int
	nonce     uint64
	code      []byte
	codeHash  types.Hash
	exists    bool
	storage   map[types.Hash]uint256.Int
	original  map[types.Hash]uint256.Int
	transient map[types.Hash]uint256.Int
}

func newCLIAccount() *cliAccount {
	return &cliAccount{
		storage:   make(map[types.Hash]uint256.Int),
		original:  make(map[types.Hash]uint256.Int),
		transient: make(map[types.Hash]uint256.Int),
	}
}

func (a *cliAccount) clone() *cliAccount {
	c := &cliAccount{
		balance:  a.balance,
		nonce:    a.nonce,
		code:     append([]byte(nil), a.code...),
		codeHash: a.codeHash,
		exists:   a.exists,
	}
	c.storage = make(map[types.Hash]uint256.Int, len(a.storage))
	for k, v := range a.storage {
		c.storage[k] = v
	}
	c.original = make(map[types.Hash]uint256.Int, len(a.original))
	for k, v := range a.original {
		c.original[k] = v
	}
	c.transient = make(map[types.Hash]uint256.Int, len(a.transient))
	for k, v := range a.transient {
		c.transient[k] = v
	}
	return c
}

func newCLIHost() *cliHost {
	return &cliHost{
		accounts:       make(map[types.Address]*cliAccount),
		accessedAddrs:  make(map[types.Address]bool),
		accessedSlots:  make(map[types.Address]map[types.Hash]bool),
		selfDestructed: make(map[types.Address]types.Address),
	}
}

func (h *cliHost) acct(addr types.Address) *cliAccount {
	a, ok := h.accounts[addr]
	if !ok {
		a = newCLIAccount()
		h.accounts[addr] = a
	}
	return a
}

func (h *cliHost) setBalance(addr types.Address, v *uint256.Int) {
	a := h.acct(addr)
	a.exists = true
	a.balance = *v
}

func (h *cliHost) setCode(addr types.Address, code []byte) {
	a := h.acct(addr)
	a.exists = true
	a.code = code
	a.codeHash = crypto.Keccak256Hash(code)
}

func (h *cliHost) Balance(addr types.Address) *uint256.Int {
	b := h.acct(addr).balance
	return &b
}

func (h *cliHost) Code(addr types.Address) []byte           { return h.acct(addr).code }
func (h *cliHost) CodeHash(addr types.Address) types.Hash    { return h.acct(addr).codeHash }
func (h *cliHost) CodeSize(addr types.Address) int           { return len(h.acct(addr).code) }
func (h *cliHost) AccountExists(addr types.Address) bool     { return h.acct(addr).exists }

func (h *cliHost) Empty(addr types.Address) bool {
	a := h.acct(addr)
	return !a.exists || (a.nonce == 0 && len(a.code) == 0 && a.balance.IsZero())
}

func (h *cliHost) SLoad(addr types.Address, key types.Hash) uint256.Int {
	return h.acct(addr).storage[key]
}

func (h *cliHost) SStore(addr types.Address, key types.Hash, newValue uint256.Int) vm.StorageResult {
	a := h.acct(addr)
	current := a.storage[key]
	orig, ok := a.original[key]
	if !ok {
		orig = current
		a.original[key] = orig
	}
	a.storage[key] = newValue
	return vm.StorageResult{Original: orig, Current: current, New: newValue}
}

func (h *cliHost) TLoad(addr types.Address, key types.Hash) uint256.Int {
	return h.acct(addr).transient[key]
}

func (h *cliHost) TStore(addr types.Address, key types.Hash, newValue uint256.Int) {
	h.acct(addr).transient[key] = newValue
}

func (h *cliHost) AccessAddress(addr types.Address) vm.AccessStatus {
	if h.accessedAddrs[addr] {
		return vm.Warm
	}
	h.accessedAddrs[addr] = true
	return vm.Cold
}

func (h *cliHost) AccessStorageSlot(addr types.Address, key types.Hash) vm.AccessStatus {
	m, ok := h.accessedSlots[addr]
	if !ok {
		m = make(map[types.Hash]bool)
		h.accessedSlots[addr] = m
	}
	if m[key] {
		return vm.Warm
	}
	m[key] = true
	return vm.Cold
}

func (h *cliHost) EmitLog(addr types.Address, topics []types.Hash, data []byte) {
	slog.Debug("log emitted", "address", addr, "topics", len(topics), "data", len(data))
}

func (h *cliHost) BlockHash(number uint64) types.Hash { return types.Hash{} }

func (h *cliHost) BlockContext() vm.BlockContext { return vm.BlockContext{GasLimit: 30_000_000} }
func (h *cliHost) TxContext() vm.TxContext       { return vm.TxContext{} }

func (h *cliHost) Transfer(from, to types.Address, value *uint256.Int) error {
	if value.IsZero() {
		h.acct(to).exists = true
		return nil
	}
	fa := h.acct(from)
	if fa.balance.Cmp(value) < 0 {
		return vm.ErrBalanceTooLow
	}
	fa.balance.Sub(&fa.balance, value)
	ta := h.acct(to)
	ta.balance.Add(&ta.balance, value)
	ta.exists = true
	return nil
}

func (h *cliHost) CreateAccount(addr types.Address)          { h.acct(addr).exists = true }
func (h *cliHost) SetCode(addr types.Address, code []byte)   { h.setCode(addr, code) }
func (h *cliHost) SetNonce(addr types.Address, nonce uint64) { h.acct(addr).nonce = nonce }
func (h *cliHost) Nonce(addr types.Address) uint64           { return h.acct(addr).nonce }

// SelfDestruct always reports "not created this tx": a one-shot CLI run has
// no transaction boundary to track, so EIP-6780's deletion decision (the
// Host's to make per DESIGN.md) degrades to "never delete, always pay out".
func (h *cliHost) SelfDestruct(addr, beneficiary types.Address) bool {
	h.selfDestructed[addr] = beneficiary
	return false
}

type cliSnapshot struct {
	accounts map[types.Address]*cliAccount
}

func (h *cliHost) Snapshot() vm.Snapshot {
	clone := make(map[types.Address]*cliAccount, len(h.accounts))
	for addr, a := range h.accounts {
		clone[addr] = a.clone()
	}
	return &cliSnapshot{accounts: clone}
}

func (h *cliHost) RevertToSnapshot(s vm.Snapshot) {
	snap := s.(*cliSnapshot)
	h.accounts = snap.accounts
}

func (h *cliHost) Commit(s vm.Snapshot) {}

var _ vm.Host = (*cliHost)(nil)
