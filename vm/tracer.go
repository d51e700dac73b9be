package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/types"
)

// StepInfo is passed to Tracer.PreStep immediately before an instruction
// executes (spec.md §4.C10).
type StepInfo struct {
	PC           uint64
	Opcode       OpCode
	Mnemonic     string
	GasRemaining uint64
	Depth        int
	StackSize    int
	MemorySize   int
	Address      types.Address
}

// StepResult is passed to Tracer.PostStep immediately after an instruction
// executes. Stack/Memory snapshots are bounded copies sized by the
// tracer's own caps (TracerConfig) -- the engine never knows or cares what
// those caps are beyond calling the bounding helpers.
type StepResult struct {
	GasCost        uint64
	Stack          []uint256.Int // bounded copy, top-to-bottom truncated per cap
	StackTruncated bool
	Memory         []byte // bounded copy
	MemoryTruncated bool
	StorageChanges map[types.Hash]uint256.Int
	LogsEmitted    []types.Log
	Err            error
}

// FinalResult is passed to Tracer.Finalize when a frame terminates.
type FinalResult struct {
	GasUsed      uint64
	Failed       bool
	ReturnData   []byte
	TerminalKind TerminalKind
	Halt         HaltReason
}

// TerminalKind classifies how a frame ended.
type TerminalKind int

const (
	TerminalSuccess TerminalKind = iota
	TerminalRevert
	TerminalHalt
)

// Tracer is the optional observer of C10. StepResult's Stack and Memory
// are fresh copies made for every step (boundStack/boundMemory), so an
// implementation may keep them; FinalResult.ReturnData is the frame's own
// output slice, not a copy.
type Tracer interface {
	PreStep(info StepInfo)
	PostStep(result StepResult)
	Finalize(result FinalResult)
}

// NoopTracer discards every callback. It is the zero-cost default: the
// interpreter checks `tracer != nil` before ever constructing a StepInfo,
// so installing NoopTracer (vs leaving Tracer nil) only matters if a
// caller wants an explicit "there is a tracer, it just does nothing"
// value to pass around.
type NoopTracer struct{}

func (NoopTracer) PreStep(StepInfo)      {}
func (NoopTracer) PostStep(StepResult)   {}
func (NoopTracer) Finalize(FinalResult)  {}

// TracerConfig bounds the size of StepResult snapshots (spec.md §4.C10
// "All snapshots respect caller-configured byte/item caps").
type TracerConfig struct {
	MaxStackItems int
	MaxMemoryBytes int
}

// DefaultTracerConfig matches go-ethereum's struct-logger defaults: no
// truncation unless the caller asks for it.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{MaxStackItems: 0, MaxMemoryBytes: 0}
}

func boundStack(data []uint256.Int, cap int) ([]uint256.Int, bool) {
	if cap <= 0 || len(data) <= cap {
		out := make([]uint256.Int, len(data))
		copy(out, data)
		return out, false
	}
	out := make([]uint256.Int, cap)
	copy(out, data[len(data)-cap:])
	return out, true
}

func boundMemory(data []byte, cap int) ([]byte, bool) {
	if cap <= 0 || len(data) <= cap {
		out := make([]byte, len(data))
		copy(out, data)
		return out, false
	}
	out := make([]byte, cap)
	copy(out, data[:cap])
	return out, true
}
