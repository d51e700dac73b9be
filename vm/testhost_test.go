package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/crypto"
	"github.com/evmcore/evmcore/types"
)

// fakeHost is a minimal in-memory Host for exercising the interpreter and
// call-frame manager without a real worldstate, grounded on the pattern
// the retrieved pack's state-transition tests use for a stub StateDB.
type fakeHost struct {
	accounts       map[types.Address]*fakeAccount
	accessedAddrs  map[types.Address]bool
	accessedSlots  map[types.Address]map[types.Hash]bool
	logs           []types.Log
	selfDestructed map[types.Address]types.Address
	blockCtx       BlockContext
	txCtx          TxContext
}

type fakeAccount struct {
	balance   uint256.Int
	nonce     uint64
	code      []byte
	codeHash  types.Hash
	exists    bool
	storage   map[types.Hash]uint256.Int
	original  map[types.Hash]uint256.Int
	transient map[types.Hash]uint256.Int
}

func newFakeAccount() *fakeAccount {
	return &fakeAccount{
		storage:   make(map[types.Hash]uint256.Int),
		original:  make(map[types.Hash]uint256.Int),
		transient: make(map[types.Hash]uint256.Int),
	}
}

func (a *fakeAccount) clone() *fakeAccount {
	c := &fakeAccount{
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

func newFakeHost() *fakeHost {
	return &fakeHost{
		accounts:       make(map[types.Address]*fakeAccount),
		accessedAddrs:  make(map[types.Address]bool),
		accessedSlots:  make(map[types.Address]map[types.Hash]bool),
		selfDestructed: make(map[types.Address]types.Address),
	}
}

func (h *fakeHost) acct(addr types.Address) *fakeAccount {
	a, ok := h.accounts[addr]
	if !ok {
		a = newFakeAccount()
		h.accounts[addr] = a
	}
	return a
}

func (h *fakeHost) setBalance(addr types.Address, v uint64) {
	a := h.acct(addr)
	a.exists = true
	a.balance.SetUint64(v)
}

func (h *fakeHost) setCode(addr types.Address, code []byte) {
	a := h.acct(addr)
	a.exists = true
	a.code = code
	a.codeHash = crypto.Keccak256Hash(code)
}

func (h *fakeHost) Balance(addr types.Address) *uint256.Int {
	b := h.acct(addr).balance
	return &b
}

func (h *fakeHost) Code(addr types.Address) []byte { return h.acct(addr).code }

func (h *fakeHost) CodeHash(addr types.Address) types.Hash { return h.acct(addr).codeHash }

func (h *fakeHost) CodeSize(addr types.Address) int { return len(h.acct(addr).code) }

func (h *fakeHost) AccountExists(addr types.Address) bool { return h.acct(addr).exists }

func (h *fakeHost) Empty(addr types.Address) bool {
	a := h.acct(addr)
	return !a.exists || (a.nonce == 0 && len(a.code) == 0 && a.balance.IsZero())
}

func (h *fakeHost) SLoad(addr types.Address, key types.Hash) uint256.Int {
	return h.acct(addr).storage[key]
}

func (h *fakeHost) SStore(addr types.Address, key types.Hash, newValue uint256.Int) StorageResult {
	a := h.acct(addr)
	current := a.storage[key]
	orig, ok := a.original[key]
	if !ok {
		orig = current
		a.original[key] = orig
	}
	a.storage[key] = newValue
	return StorageResult{Original: orig, Current: current, New: newValue}
}

func (h *fakeHost) TLoad(addr types.Address, key types.Hash) uint256.Int {
	return h.acct(addr).transient[key]
}

func (h *fakeHost) TStore(addr types.Address, key types.Hash, newValue uint256.Int) {
	h.acct(addr).transient[key] = newValue
}

func (h *fakeHost) AccessAddress(addr types.Address) AccessStatus {
	if h.accessedAddrs[addr] {
		return Warm
	}
	h.accessedAddrs[addr] = true
	return Cold
}

func (h *fakeHost) AccessStorageSlot(addr types.Address, key types.Hash) AccessStatus {
	m, ok := h.accessedSlots[addr]
	if !ok {
		m = make(map[types.Hash]bool)
		h.accessedSlots[addr] = m
	}
	if m[key] {
		return Warm
	}
	m[key] = true
	return Cold
}

func (h *fakeHost) EmitLog(addr types.Address, topics []types.Hash, data []byte) {
	h.logs = append(h.logs, types.Log{Address: addr, Topics: topics, Data: data})
}

func (h *fakeHost) BlockHash(number uint64) types.Hash { return types.Hash{} }

func (h *fakeHost) BlockContext() BlockContext { return h.blockCtx }

func (h *fakeHost) TxContext() TxContext { return h.txCtx }

func (h *fakeHost) Transfer(from, to types.Address, value *uint256.Int) error {
	if value.IsZero() {
		h.acct(to).exists = true
		return nil
	}
	fa := h.acct(from)
	if fa.balance.Cmp(value) < 0 {
		return ErrBalanceTooLow
	}
	fa.balance.Sub(&fa.balance, value)
	ta := h.acct(to)
	ta.balance.Add(&ta.balance, value)
	ta.exists = true
	return nil
}

func (h *fakeHost) CreateAccount(addr types.Address) { h.acct(addr).exists = true }

func (h *fakeHost) SetCode(addr types.Address, code []byte) { h.setCode(addr, code) }

func (h *fakeHost) SetNonce(addr types.Address, nonce uint64) { h.acct(addr).nonce = nonce }

func (h *fakeHost) Nonce(addr types.Address) uint64 { return h.acct(addr).nonce }

// SelfDestruct always reports "not created this tx" since fakeHost never
// tracks a per-transaction creation set; EIP-6780's "only delete when
// created in the same transaction" decision is the Host's to make
// (DESIGN.md), but this test double doesn't model transaction boundaries at
// all, so it only records the beneficiary for assertions.
func (h *fakeHost) SelfDestruct(addr, beneficiary types.Address) bool {
	h.selfDestructed[addr] = beneficiary
	return false
}

type fakeSnapshot struct {
	accounts map[types.Address]*fakeAccount
}

func (h *fakeHost) Snapshot() Snapshot {
	clone := make(map[types.Address]*fakeAccount, len(h.accounts))
	for addr, a := range h.accounts {
		clone[addr] = a.clone()
	}
	return &fakeSnapshot{accounts: clone}
}

func (h *fakeHost) RevertToSnapshot(s Snapshot) {
	snap := s.(*fakeSnapshot)
	h.accounts = snap.accounts
}

func (h *fakeHost) Commit(s Snapshot) {}
