package vm

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/types"
)

// BlockMetrics is the per-basic-block summary the analyzer computes so the
// interpreter can validate and charge an entire block in one step
// (spec.md §3.6, §4.C6).
type BlockMetrics struct {
	Gas       uint64 // total static gas of every instruction in the block
	MinStack  int    // minimum stack depth required on entry
	MaxGrowth int    // maximum stack growth reached inside the block
}

// Instruction is one entry of the analyzed instruction stream (spec.md
// §3.6). PUSH data bytes are never emitted as instructions.
type Instruction struct {
	Op    OpCode
	PC    uint64      // byte offset of this instruction in the original code
	Push  uint256.Int // valid iff Op is PUSH0..PUSH32
	Block int         // index into AnalyzedCode.Blocks this instruction belongs to
	// BlockStart marks the first instruction of Block; the interpreter
	// charges and validates the whole block when it reaches this
	// instruction (spec.md §4.C8 step 1, "block header").
	BlockStart bool
	// GasCorrection is the static gas of this block's instructions that
	// follow this one and have therefore already been pre-charged by the
	// block header but not yet conceptually executed. Only meaningful for
	// Op == GAS; see spec.md §4.C8 "GAS opcode correction".
	GasCorrection uint64
}

// AnalyzedCode is the cached output of a single analyzer pass over a code
// blob (spec.md §3.6), keyed by code hash in the EVM's Cache.
type AnalyzedCode struct {
	CodeHash types.Hash
	Code     []byte

	jumpdests bitvec      // one bit per code byte; set iff JUMPDEST-as-instruction
	Instructions []Instruction
	Blocks       []BlockMetrics

	// pcToIndex maps a JUMPDEST byte offset to its instruction index, for
	// O(1) dynamic jump resolution (spec.md §3.6).
	pcToIndex map[uint64]int
}

// IsJumpdest reports whether pc is a valid JUMP/JUMPI target: the byte at
// pc is 0x5B and it was reached as an instruction, not as PUSH data
// (spec.md §8.1 "JUMPDEST soundness").
func (a *AnalyzedCode) IsJumpdest(pc uint64) bool {
	if pc >= uint64(len(a.Code)) {
		return false
	}
	return a.jumpdests.isSet(pc)
}

// InstructionIndex resolves a validated JUMPDEST pc to its index in
// Instructions, for the interpreter's Jump(target) handling.
func (a *AnalyzedCode) InstructionIndex(pc uint64) (int, bool) {
	idx, ok := a.pcToIndex[pc]
	return idx, ok
}

// bitvec is a packed per-byte bit vector sized to code length.
type bitvec []byte

func newBitvec(n int) bitvec { return make(bitvec, (n+7)/8) }

func (b bitvec) set(pos uint64) {
	b[pos/8] |= 1 << (pos % 8)
}

func (b bitvec) isSet(pos uint64) bool {
	return b[pos/8]&(1<<(pos%8)) != 0
}

// blockBuilder accumulates the running stack-metric state for the block
// currently being analyzed (spec.md §4.C6 steps 1-3).
type blockBuilder struct {
	gas        uint64
	curDelta   int
	minStack   int
	maxGrowth  int
	gasInstrs  []gasFixup // GAS instructions seen so far in this block
}

type gasFixup struct {
	instrIndex int
	cumulative uint64
}

func (b *blockBuilder) reset() {
	*b = blockBuilder{}
}

func (b *blockBuilder) apply(pops, pushes int, gas uint64) {
	if b.curDelta-pops < -b.minStack {
		b.minStack = pops - b.curDelta
	}
	b.curDelta += pushes - pops
	if b.curDelta > b.maxGrowth {
		b.maxGrowth = b.curDelta
	}
	b.gas += gas
}

// Analyze runs the single forward pass of spec.md §4.C6 over code and
// returns the analysis result; caching is Cache's job. It never fails on syntactically
// legal bytes; a PUSH whose operand runs past the end of code is treated
// as implicit zero-padding.
func Analyze(code []byte) *AnalyzedCode {
	a := &AnalyzedCode{
		Code:      code,
		jumpdests: newBitvec(len(code)),
		pcToIndex: make(map[uint64]int),
	}

	var bb blockBuilder
	blockStartInstr := 0

	closeBlock := func() {
		blk := BlockMetrics{Gas: bb.gas, MinStack: bb.minStack, MaxGrowth: bb.maxGrowth}
		blockIdx := len(a.Blocks)
		a.Blocks = append(a.Blocks, blk)
		for i := blockStartInstr; i < len(a.Instructions); i++ {
			a.Instructions[i].Block = blockIdx
		}
		for _, fx := range bb.gasInstrs {
			a.Instructions[fx.instrIndex].GasCorrection = blk.Gas - fx.cumulative
		}
		bb.reset()
		blockStartInstr = len(a.Instructions)
	}

	pc := uint64(0)
	n := uint64(len(code))
	for pc < n {
		op := OpCode(code[pc])
		m := opMetaTable[op]

		if op == JUMPDEST {
			// A JUMPDEST always starts a fresh block containing itself
			// (spec.md §4.C6 step 4): close whatever came before, then
			// begin the new block with this instruction.
			if len(a.Instructions) > blockStartInstr {
				closeBlock()
			}
			a.jumpdests.set(pc)
		}

		instrIdx := len(a.Instructions)
		instr := Instruction{Op: op, PC: pc, BlockStart: instrIdx == blockStartInstr}

		if op == JUMPDEST {
			a.pcToIndex[pc] = instrIdx
		}

		if n, ok := IsPush(op); ok {
			var val uint256.Int
			start := pc + 1
			end := start + uint64(n)
			var buf [32]byte
			if n > 0 {
				for i := 0; i < n; i++ {
					srcPC := start + uint64(i)
					if srcPC < uint64(len(code)) {
						buf[32-n+i] = code[srcPC]
					} // else implicit zero padding
				}
				val.SetBytes(buf[:])
			}
			instr.Push = val
			pc = end
		} else {
			pc++
		}

		bb.apply(m.numPop, m.numPush, m.constantGas)
		if op == GAS {
			bb.gasInstrs = append(bb.gasInstrs, gasFixup{instrIndex: instrIdx, cumulative: bb.gas})
		}
		a.Instructions = append(a.Instructions, instr)

		if isTerminator(op) {
			closeBlock()
		}
	}
	if len(a.Instructions) > blockStartInstr {
		closeBlock()
	}
	return a
}

// Cache is a code-hash-keyed, single-writer-many-readers store of
// AnalyzedCode (spec.md §3.6, §5 "shared-resource policy"). The zero value
// is ready to use.
type Cache struct {
	mu sync.RWMutex
	m  map[types.Hash]*AnalyzedCode
}

// NewCache returns an empty analyzed-code cache.
func NewCache() *Cache {
	return &Cache{m: make(map[types.Hash]*AnalyzedCode)}
}

// GetOrAnalyze returns the cached analysis for codeHash, analyzing and
// populating the cache on a miss. Concurrent callers may both miss and
// both analyze; the cache keeps whichever result lands first, which is
// safe since analysis is a pure, deterministic function of code bytes
// (spec.md §8.2 "Analyzer determinism").
func (c *Cache) GetOrAnalyze(codeHash types.Hash, code []byte) (*AnalyzedCode, bool) {
	c.mu.RLock()
	a, ok := c.m[codeHash]
	c.mu.RUnlock()
	if ok {
		return a, true
	}
	a = Analyze(code)
	a.CodeHash = codeHash
	c.mu.Lock()
	if existing, ok := c.m[codeHash]; ok {
		c.mu.Unlock()
		return existing, false
	}
	if c.m == nil {
		c.m = make(map[types.Hash]*AnalyzedCode)
	}
	c.m[codeHash] = a
	c.mu.Unlock()
	return a, false
}
