package vm

import "errors"

// Sentinel errors for the exceptional-halt taxonomy of SPEC_FULL.md §9 /
// spec.md §7. All are comparable with errors.Is; wrapped variants add
// positional detail without losing the sentinel identity.
var (
	// ErrOutOfGas is condition 1: insufficient gas to complete a charge.
	ErrOutOfGas = errors.New("vm: out of gas")

	// ErrStackUnderflow is condition 2a.
	ErrStackUnderflow = errors.New("vm: stack underflow")

	// ErrStackOverflow is condition 2b.
	ErrStackOverflow = errors.New("vm: stack overflow")

	// ErrInvalidOpcode is condition 3: opcode undefined under the active
	// hardfork, or the explicit 0xFE INVALID opcode.
	ErrInvalidOpcode = errors.New("vm: invalid opcode")

	// ErrInvalidJump is condition 4: JUMP/JUMPI target not a JUMPDEST.
	ErrInvalidJump = errors.New("vm: invalid jump destination")

	// ErrStaticContextViolation is condition 5.
	ErrStaticContextViolation = errors.New("vm: state-mutating op in static context")

	// ErrDepthLimitExceeded is condition 6.
	ErrDepthLimitExceeded = errors.New("vm: call depth exceeded 1024")

	// ErrBalanceTooLow is condition 7.
	ErrBalanceTooLow = errors.New("vm: insufficient balance for value transfer")

	// ErrCodeSizeExceeded is condition 8 (EIP-170).
	ErrCodeSizeExceeded = errors.New("vm: deployed code size exceeds limit")

	// ErrInvalidCodePrefix is condition 9 (EIP-3541, 0xEF prefix).
	ErrInvalidCodePrefix = errors.New("vm: code starts with 0xEF")

	// ErrInitCodeLimitExceeded is condition 10 (EIP-3860).
	ErrInitCodeLimitExceeded = errors.New("vm: init code size exceeds limit")

	// ErrOutOfMemory is condition 11: implementation resource exhaustion,
	// not a protocol condition. Propagated as an engine-level failure.
	ErrOutOfMemory = errors.New("vm: out of memory")

	// ErrExecutionReverted is not an error in the protocol sense (it is an
	// orderly termination carrying output) but is returned through the Go
	// error channel by EVM.run for callers that want a single
	// failure signal; Result.Status distinguishes it from real halts.
	ErrExecutionReverted = errors.New("vm: execution reverted")

	// ErrGasUintOverflow guards offset+length arithmetic (memory access,
	// calldata copies); treated as out-of-gas per spec.md §4.C3 failure
	// model ("over/underflow of offset+length arithmetic is an exceptional
	// halt, treated as out-of-gas for compatibility").
	ErrGasUintOverflow = errors.New("vm: gas uint64 overflow")

	// ErrWriteProtection is a static-context write attempted on a value
	// transfer within CALL; kept distinct from ErrStaticContextViolation
	// only for diagnostic messages, both map to StaticContextViolation.
	ErrWriteProtection = errors.New("vm: write protection")

	// ErrNoCompatibleInterpreter signals a hardfork/opcode mismatch that
	// the dispatch table construction refused to resolve.
	ErrNoCompatibleInterpreter = errors.New("vm: no compatible interpreter")

	// ErrReturnDataOutOfBounds is RETURNDATACOPY reading past the last
	// call's return buffer -- an exceptional halt distinct from a plain
	// memory-expansion overflow.
	ErrReturnDataOutOfBounds = errors.New("vm: return data out of bounds")
)

// HaltReason classifies why a frame's interpreter loop stopped with a
// non-success, non-revert status. It mirrors the numbered taxonomy in
// spec.md §7 (conditions 1-5, which occur mid-frame; 6-10 occur at a
// call/create opcode boundary and are reported to the parent instead of
// becoming the child's own HaltReason).
type HaltReason int

const (
	HaltNone HaltReason = iota
	HaltOutOfGas
	HaltStackUnderflow
	HaltStackOverflow
	HaltInvalidOpcode
	HaltInvalidJump
	HaltStaticContextViolation
	HaltDepthLimitExceeded
	HaltBalanceTooLow
	HaltCodeSizeExceeded
	HaltInvalidCodePrefix
	HaltInitCodeLimitExceeded
	HaltOutOfMemory
)

func (h HaltReason) String() string {
	switch h {
	case HaltNone:
		return "none"
	case HaltOutOfGas:
		return "out of gas"
	case HaltStackUnderflow:
		return "stack underflow"
	case HaltStackOverflow:
		return "stack overflow"
	case HaltInvalidOpcode:
		return "invalid opcode"
	case HaltInvalidJump:
		return "invalid jump destination"
	case HaltStaticContextViolation:
		return "static context violation"
	case HaltDepthLimitExceeded:
		return "depth limit exceeded"
	case HaltBalanceTooLow:
		return "insufficient balance"
	case HaltCodeSizeExceeded:
		return "code size exceeded"
	case HaltInvalidCodePrefix:
		return "invalid code prefix"
	case HaltInitCodeLimitExceeded:
		return "init code size exceeded"
	case HaltOutOfMemory:
		return "out of memory"
	default:
		return "unknown halt reason"
	}
}

// haltReasonFor maps a sentinel error to its HaltReason, used by the
// interpreter loop to populate Result.Halt from a handler's returned error.
func haltReasonFor(err error) HaltReason {
	switch {
	case err == nil:
		return HaltNone
	case errors.Is(err, ErrOutOfGas):
		return HaltOutOfGas
	case errors.Is(err, ErrStackUnderflow):
		return HaltStackUnderflow
	case errors.Is(err, ErrStackOverflow):
		return HaltStackOverflow
	case errors.Is(err, ErrInvalidOpcode):
		return HaltInvalidOpcode
	case errors.Is(err, ErrInvalidJump):
		return HaltInvalidJump
	case errors.Is(err, ErrStaticContextViolation), errors.Is(err, ErrWriteProtection):
		return HaltStaticContextViolation
	case errors.Is(err, ErrDepthLimitExceeded):
		return HaltDepthLimitExceeded
	case errors.Is(err, ErrBalanceTooLow):
		return HaltBalanceTooLow
	case errors.Is(err, ErrCodeSizeExceeded):
		return HaltCodeSizeExceeded
	case errors.Is(err, ErrInvalidCodePrefix):
		return HaltInvalidCodePrefix
	case errors.Is(err, ErrInitCodeLimitExceeded):
		return HaltInitCodeLimitExceeded
	case errors.Is(err, ErrOutOfMemory):
		return HaltOutOfMemory
	case errors.Is(err, ErrGasUintOverflow):
		return HaltOutOfGas
	case errors.Is(err, ErrReturnDataOutOfBounds):
		return HaltInvalidOpcode
	default:
		return HaltInvalidOpcode
	}
}
