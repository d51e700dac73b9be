package vm

import (
	"sync"

	"github.com/holiman/uint256"
)

// stackLimit is the maximum number of 256-bit words the EVM operand stack
// may hold at any instruction boundary (spec.md §3.2).
const stackLimit = 1024

// Stack is the EVM operand stack: a fixed-capacity LIFO of 256-bit words.
// Values are stored by value (not pointer) to avoid per-push heap
// allocation on the hot path, following the layout the rest of the
// retrieved pack's go-ethereum-derived interpreters use for uint256-backed
// stacks.
type Stack struct {
	data []uint256.Int
}

var stackPool = sync.Pool{
	New: func() any {
		return &Stack{data: make([]uint256.Int, 0, 16)}
	},
}

// newStack returns a Stack drawn from a shared pool, grounded on the
// teacher's stack_pool.go (interpreter entry/exit is the natural
// allocate/release boundary, and frames never alias their Stack across
// calls per spec.md §5 memory discipline).
func newStack() *Stack {
	return stackPool.Get().(*Stack)
}

func (st *Stack) release() {
	st.data = st.data[:0]
	stackPool.Put(st)
}

// Len returns the number of items currently on the stack.
func (st *Stack) Len() int { return len(st.data) }

// Push pushes d onto the stack. The caller must have already validated
// headroom (the interpreter does this once per basic block via block
// metrics, spec.md §4.C2); Push still defends with an explicit check so
// any unanalyzed call path (tests, standalone use) fails safely.
func (st *Stack) Push(d *uint256.Int) error {
	if len(st.data) >= stackLimit {
		return ErrStackOverflow
	}
	st.data = append(st.data, *d)
	return nil
}

// pushZero appends the zero word and returns a pointer to the new top, for
// handlers that compute a result in place.
func (st *Stack) pushZero() *uint256.Int {
	st.data = append(st.data, uint256.Int{})
	return &st.data[len(st.data)-1]
}

// Pop removes and returns the top element.
func (st *Stack) Pop() (uint256.Int, error) {
	if len(st.data) == 0 {
		return uint256.Int{}, ErrStackUnderflow
	}
	n := len(st.data) - 1
	v := st.data[n]
	st.data = st.data[:n]
	return v, nil
}

// Peek returns a mutable pointer to the top element without removing it.
func (st *Stack) Peek() *uint256.Int {
	return &st.data[len(st.data)-1]
}

// Back returns a mutable pointer to the nth element from the top (0 = top).
func (st *Stack) Back(n int) *uint256.Int {
	return &st.data[len(st.data)-1-n]
}

// Swap exchanges the top element with the element n below the top
// (SWAP1..SWAP16 pass n=1..16).
func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

// Dup duplicates the element n below the top (counting the top as 1, so
// DUP1..DUP16 pass n=1..16) and pushes the copy.
func (st *Stack) Dup(n int) {
	v := st.data[len(st.data)-n]
	st.data = append(st.data, v)
}

// snapshot exposes the backing slice bottom-to-top, for tracer snapshots only.
func (st *Stack) snapshot() []uint256.Int { return st.data }
