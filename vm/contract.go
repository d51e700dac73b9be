package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/types"
)

// Frame is the per-active-call execution context of spec.md §3.5: it owns
// its Stack and Memory, tracks pc/gas/depth/static-ness, and carries the
// immutable call-context plus the output and return-data buffers.
type Frame struct {
	evm *EVM

	Stack  *Stack
	Memory *Memory
	gas    *GasMeter

	analysis *AnalyzedCode
	ip       int // cursor into analysis.Instructions

	Caller      types.Address
	Address     types.Address // the account this frame executes "as" (storage/balance context)
	CodeAddress types.Address // the account whose code is executing (differs from Address for CALLCODE/DELEGATECALL)
	Value       uint256.Int
	Input       []byte

	Depth    int
	IsStatic bool

	// Salt is not set by newFrame and stays nil; CREATE2 address
	// derivation in call.go reads the salt from createRequest instead.
	Salt *uint256.Int

	output     []byte // populated on RETURN/REVERT
	returnData []byte // populated by the most recently returned inner call

	// stepStorage and stepLogs accumulate the current instruction's
	// storage write and emitted log for the tracer's PostStep (spec.md
	// §4.C10 post_step's storage_changes/logs_emitted); gasSstore/makeLog
	// populate them, run() drains and clears them after every step.
	stepStorage map[types.Hash]uint256.Int
	stepLogs    []types.Log
}

// newFrame constructs a Frame ready to run. gas is this frame's own
// allowance (already deducted from the parent by the call-frame manager,
// or the top-level gas_limit for the outermost call).
func newFrame(evm *EVM, analysis *AnalyzedCode, gas *GasMeter, caller, address, codeAddress types.Address, value uint256.Int, input []byte, depth int, isStatic bool) *Frame {
	return &Frame{
		evm:         evm,
		Stack:       newStack(),
		Memory:      NewMemory(),
		gas:         gas,
		analysis:    analysis,
		Caller:      caller,
		Address:     address,
		CodeAddress: codeAddress,
		Value:       value,
		Input:       input,
		Depth:       depth,
		IsStatic:    isStatic,
	}
}

func (f *Frame) release() {
	f.Stack.release()
}

// recordStorageChange notes a storage write for the current instruction's
// tracer step.
func (f *Frame) recordStorageChange(key types.Hash, value uint256.Int) {
	if f.stepStorage == nil {
		f.stepStorage = make(map[types.Hash]uint256.Int, 1)
	}
	f.stepStorage[key] = value
}

// recordLog notes an emitted log for the current instruction's tracer step.
func (f *Frame) recordLog(log types.Log) {
	f.stepLogs = append(f.stepLogs, log)
}

// drainStep returns and clears the storage changes and logs accumulated by
// the instruction that just ran, for run() to thread into PostStep.
func (f *Frame) drainStep() (map[types.Hash]uint256.Int, []types.Log) {
	storage, logs := f.stepStorage, f.stepLogs
	f.stepStorage, f.stepLogs = nil, nil
	return storage, logs
}

// GasRemaining returns the gas left in this frame.
func (f *Frame) GasRemaining() uint64 { return f.gas.Remaining() }

// PC returns the byte offset of the instruction about to execute, for PC
// and tracer reporting.
func (f *Frame) PC() uint64 {
	if f.ip >= len(f.analysis.Instructions) {
		return uint64(len(f.analysis.Code))
	}
	return f.analysis.Instructions[f.ip].PC
}

// ReturnData returns the most recent inner call's return-data buffer.
func (f *Frame) ReturnData() []byte { return f.returnData }

// Code returns the bytecode this frame is executing.
func (f *Frame) Code() []byte { return f.analysis.Code }
