package vm

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/crypto"
	"github.com/evmcore/evmcore/types"
)

// callRequest is the normalized input to EVM.call, built by the CALL-family
// opcode handlers (this file) or by Execute for a top-level message call
// (spec.md §4.C9 "Shared procedure").
type callRequest struct {
	caller, address, codeAddress types.Address
	value                        uint256.Int
	input                        []byte
	code                         []byte // non-nil only for a top-level Execute call: run this blob directly, skipping host.Code/precompile resolution
	gas                          *GasMeter
	depth                        int
	isStatic                     bool
	transfer                     bool
}

// createRequest is the normalized input to EVM.create.
type createRequest struct {
	caller   types.Address
	value    uint256.Int
	initCode []byte
	gas      *GasMeter
	depth    int
	isStatic bool
	salt     uint256.Int
}

// callOutcome is what a call/create returns to its invoker, whether that
// is the top-level Execute or an opCall-family handler one depth up.
type callOutcome struct {
	output   []byte
	reverted bool
	halt     HaltReason
	created  *types.Address
}

// observeCall records a call/create frame's outcome for the calls_total
// and call_depth metrics (internal/vmmetrics), a no-op when no Metrics is
// configured.
func (e *EVM) observeCall(kind CallKind, depth int, res callOutcome) {
	if e.m == nil {
		return
	}
	outcome := "success"
	switch {
	case res.halt != HaltNone:
		outcome = "halt"
	case res.reverted:
		outcome = "revert"
	}
	e.m.ObserveCall(kind.String(), outcome, depth)
}

// call implements C9 for CALL, CALLCODE, DELEGATECALL, and STATICCALL.
func (e *EVM) call(kind CallKind, req callRequest) (res callOutcome) {
	defer func() { e.observeCall(kind, req.depth, res) }()

	if req.depth > e.config.depthLimit() {
		return callOutcome{halt: HaltDepthLimitExceeded}
	}

	if req.transfer && !req.value.IsZero() {
		if req.isStatic {
			return callOutcome{halt: HaltStaticContextViolation}
		}
		bal := e.host.Balance(req.caller)
		if bal.Cmp(&req.value) < 0 {
			return callOutcome{halt: HaltBalanceTooLow}
		}
	}

	snap := e.host.Snapshot()

	if req.transfer {
		if err := e.host.Transfer(req.caller, req.address, &req.value); err != nil {
			e.host.RevertToSnapshot(snap)
			return callOutcome{halt: HaltBalanceTooLow}
		}
	}

	code := req.code
	var codeHash types.Hash
	if code == nil {
		if pc, ok := lookupPrecompile(e.rules, req.codeAddress); ok {
			out, remaining, err := runPrecompile(pc, req.input, req.gas.Remaining())
			req.gas.remaining = remaining
			if err != nil {
				e.host.RevertToSnapshot(snap)
				return callOutcome{halt: HaltInvalidOpcode}
			}
			e.host.Commit(snap)
			return callOutcome{output: out}
		}
		code = e.host.Code(req.codeAddress)
		codeHash = e.host.CodeHash(req.codeAddress)
	} else {
		codeHash = crypto.Keccak256Hash(code)
	}

	analysis, hit := e.cache.GetOrAnalyze(codeHash, code)
	if e.m != nil {
		if hit {
			e.m.ObserveAnalysisCache("hit")
		} else {
			e.m.ObserveAnalysisCache("miss")
		}
	}
	frame := newFrame(e, analysis, req.gas, req.caller, req.address, req.codeAddress, req.value, req.input, req.depth, req.isStatic)
	defer frame.release()

	out, runErr := e.run(frame)

	switch {
	case runErr == nil:
		e.host.Commit(snap)
		return callOutcome{output: out}
	case errors.Is(runErr, ErrExecutionReverted):
		e.host.RevertToSnapshot(snap)
		return callOutcome{output: out, reverted: true}
	default:
		e.host.RevertToSnapshot(snap)
		frame.gas.Exhaust()
		return callOutcome{halt: haltReasonFor(runErr)}
	}
}

// create implements C9 for CREATE and CREATE2.
func (e *EVM) create(kind CallKind, req createRequest) (res callOutcome) {
	defer func() { e.observeCall(kind, req.depth, res) }()

	if req.depth > e.config.depthLimit() {
		return callOutcome{halt: HaltDepthLimitExceeded}
	}
	if req.isStatic {
		return callOutcome{halt: HaltStaticContextViolation}
	}
	if e.rules.EIP3860 && len(req.initCode) > e.rules.MaxInitCodeSize() {
		return callOutcome{halt: HaltInitCodeLimitExceeded}
	}
	bal := e.host.Balance(req.caller)
	if bal.Cmp(&req.value) < 0 {
		return callOutcome{halt: HaltBalanceTooLow}
	}

	nonce := e.host.Nonce(req.caller)
	e.host.SetNonce(req.caller, nonce+1)

	var addr types.Address
	if kind == CallKindCreate2 {
		saltBytes := req.salt.Bytes32()
		addr = crypto.CreateAddress2(req.caller, saltBytes, crypto.Keccak256(req.initCode))
	} else {
		addr = crypto.CreateAddress(req.caller, nonce)
	}

	snap := e.host.Snapshot()

	if e.host.AccountExists(addr) && (e.host.CodeSize(addr) > 0 || e.host.Nonce(addr) > 0) {
		e.host.RevertToSnapshot(snap)
		return callOutcome{halt: HaltBalanceTooLow}
	}
	e.host.CreateAccount(addr)
	e.host.SetNonce(addr, 1)
	if err := e.host.Transfer(req.caller, addr, &req.value); err != nil {
		e.host.RevertToSnapshot(snap)
		return callOutcome{halt: HaltBalanceTooLow}
	}

	analysis := Analyze(req.initCode)
	frame := newFrame(e, analysis, req.gas, req.caller, addr, addr, req.value, nil, req.depth, req.isStatic)
	defer frame.release()

	out, runErr := e.run(frame)

	switch {
	case runErr == nil:
		if e.rules.EIP3541 && len(out) > 0 && out[0] == 0xEF {
			e.host.RevertToSnapshot(snap)
			frame.gas.Exhaust()
			return callOutcome{halt: HaltInvalidCodePrefix}
		}
		if max := e.rules.MaxCodeSize(); max > 0 && len(out) > max {
			e.host.RevertToSnapshot(snap)
			frame.gas.Exhaust()
			return callOutcome{halt: HaltCodeSizeExceeded}
		}
		if err := frame.gas.Charge(uint64(len(out)) * GasCreateData); err != nil {
			e.host.RevertToSnapshot(snap)
			frame.gas.Exhaust()
			return callOutcome{halt: HaltOutOfGas}
		}
		e.host.SetCode(addr, out)
		e.host.Commit(snap)
		return callOutcome{created: &addr}
	case errors.Is(runErr, ErrExecutionReverted):
		e.host.RevertToSnapshot(snap)
		return callOutcome{output: out, reverted: true}
	default:
		e.host.RevertToSnapshot(snap)
		frame.gas.Exhaust()
		return callOutcome{halt: haltReasonFor(runErr)}
	}
}

// --- CALL-family opcode handlers ---
//
// Each pops its operands, reserves child gas via the 63/64 rule (gas.go's
// callGas), recurses into e.call/e.create, reclaims unused gas, and pushes
// a 1/0 success flag (spec.md §4.C9 "Return path").

func childGasFor(f *Frame, requestedGas *uint256.Int, hasValue bool) (forward, charge uint64, err error) {
	requested := uint64(0)
	if requestedGas.IsUint64() {
		requested = requestedGas.Uint64()
	} else {
		requested = MaxCallGas
	}
	forward, err = callGas(f.evm.rules, f.GasRemaining(), requested, hasValue)
	if err != nil {
		return 0, 0, err
	}
	charge = forward
	if hasValue {
		charge -= GasCallStipend
	}
	return forward, charge, nil
}

func pushCallResult(f *Frame, res callOutcome) {
	f.returnData = res.output
	if res.halt != HaltNone || res.reverted {
		f.Stack.pushZero()
		return
	}
	f.Stack.pushZero().SetOne()
}

func writeCallReturn(f *Frame, res callOutcome, retOffset, retLength uint64) {
	if retLength == 0 {
		return
	}
	n := retLength
	if uint64(len(res.output)) < n {
		n = uint64(len(res.output))
	}
	f.Memory.Set(retOffset, res.output[:n])
}

func opCall(f *Frame) ([]byte, error) {
	gasArg, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	value, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	argsOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	argsLength, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	retOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	retLength, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	if f.IsStatic && !value.IsZero() {
		return nil, ErrStaticContextViolation
	}

	forward, charge, err := childGasFor(f, &gasArg, !value.IsZero())
	if err != nil {
		return nil, err
	}
	if err := f.gas.Charge(charge); err != nil {
		return nil, err
	}
	input := f.Memory.GetCopy(argsOffset.Uint64(), argsLength.Uint64())
	addr := types.BytesToAddress(addrWord.Bytes())
	child := f.gas.child(forward)

	res := f.evm.call(CallKindCall, callRequest{
		caller: f.Address, address: addr, codeAddress: addr,
		value: value, input: input, gas: child, depth: f.Depth + 1,
		isStatic: f.IsStatic, transfer: true,
	})
	f.gas.remaining += child.Remaining()
	pushCallResult(f, res)
	writeCallReturn(f, res, retOffset.Uint64(), retLength.Uint64())
	return nil, nil
}

func opCallCode(f *Frame) ([]byte, error) {
	gasArg, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	value, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	argsOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	argsLength, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	retOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	retLength, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	if f.IsStatic && !value.IsZero() {
		return nil, ErrStaticContextViolation
	}

	forward, charge, err := childGasFor(f, &gasArg, !value.IsZero())
	if err != nil {
		return nil, err
	}
	if err := f.gas.Charge(charge); err != nil {
		return nil, err
	}
	input := f.Memory.GetCopy(argsOffset.Uint64(), argsLength.Uint64())
	addr := types.BytesToAddress(addrWord.Bytes())
	child := f.gas.child(forward)

	// CALLCODE executes addr's code but keeps the caller's own address as
	// the storage/balance context (spec.md §4.C9 "CALLCODE/DELEGATECALL
	// context rules"); the value transfer is to-self.
	res := f.evm.call(CallKindCallCode, callRequest{
		caller: f.Address, address: f.Address, codeAddress: addr,
		value: value, input: input, gas: child, depth: f.Depth + 1,
		isStatic: f.IsStatic, transfer: !value.IsZero(),
	})
	f.gas.remaining += child.Remaining()
	pushCallResult(f, res)
	writeCallReturn(f, res, retOffset.Uint64(), retLength.Uint64())
	return nil, nil
}

func opDelegateCall(f *Frame) ([]byte, error) {
	gasArg, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	argsOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	argsLength, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	retOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	retLength, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}

	forward, charge, err := childGasFor(f, &gasArg, false)
	if err != nil {
		return nil, err
	}
	if err := f.gas.Charge(charge); err != nil {
		return nil, err
	}
	input := f.Memory.GetCopy(argsOffset.Uint64(), argsLength.Uint64())
	addr := types.BytesToAddress(addrWord.Bytes())
	child := f.gas.child(forward)

	// DELEGATECALL inherits both Caller and Value from the parent frame
	// unchanged (spec.md §4.C9): the callee runs "as" this frame in every
	// respect except which code executes.
	res := f.evm.call(CallKindDelegateCall, callRequest{
		caller: f.Caller, address: f.Address, codeAddress: addr,
		value: f.Value, input: input, gas: child, depth: f.Depth + 1,
		isStatic: f.IsStatic, transfer: false,
	})
	f.gas.remaining += child.Remaining()
	pushCallResult(f, res)
	writeCallReturn(f, res, retOffset.Uint64(), retLength.Uint64())
	return nil, nil
}

func opStaticCall(f *Frame) ([]byte, error) {
	gasArg, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	argsOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	argsLength, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	retOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	retLength, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}

	forward, charge, err := childGasFor(f, &gasArg, false)
	if err != nil {
		return nil, err
	}
	if err := f.gas.Charge(charge); err != nil {
		return nil, err
	}
	input := f.Memory.GetCopy(argsOffset.Uint64(), argsLength.Uint64())
	addr := types.BytesToAddress(addrWord.Bytes())
	child := f.gas.child(forward)

	res := f.evm.call(CallKindStaticCall, callRequest{
		caller: f.Address, address: addr, codeAddress: addr,
		value: uint256.Int{}, input: input, gas: child, depth: f.Depth + 1,
		isStatic: true, transfer: false,
	})
	f.gas.remaining += child.Remaining()
	pushCallResult(f, res)
	writeCallReturn(f, res, retOffset.Uint64(), retLength.Uint64())
	return nil, nil
}

func opCreate(f *Frame) ([]byte, error) {
	if f.IsStatic {
		return nil, ErrStaticContextViolation
	}
	value, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	size, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	initCode := f.Memory.GetCopy(offset.Uint64(), size.Uint64())

	var forward uint64
	if f.evm.rules.EIP150 {
		forward = f.GasRemaining() - f.GasRemaining()/64
	} else {
		forward = f.GasRemaining()
	}
	if err := f.gas.Charge(forward); err != nil {
		return nil, err
	}
	child := f.gas.child(forward)

	res := f.evm.create(CallKindCreate, createRequest{
		caller: f.Address, value: value, initCode: initCode,
		gas: child, depth: f.Depth + 1, isStatic: f.IsStatic,
	})
	f.gas.remaining += child.Remaining()
	pushCreateResult(f, res)
	f.returnData = res.output
	return nil, nil
}

func opCreate2(f *Frame) ([]byte, error) {
	if f.IsStatic {
		return nil, ErrStaticContextViolation
	}
	value, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	size, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	salt, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	initCode := f.Memory.GetCopy(offset.Uint64(), size.Uint64())

	forward := f.GasRemaining() - f.GasRemaining()/64
	if err := f.gas.Charge(forward); err != nil {
		return nil, err
	}
	child := f.gas.child(forward)

	res := f.evm.create(CallKindCreate2, createRequest{
		caller: f.Address, value: value, initCode: initCode,
		gas: child, depth: f.Depth + 1, isStatic: f.IsStatic, salt: salt,
	})
	f.gas.remaining += child.Remaining()
	pushCreateResult(f, res)
	f.returnData = res.output
	return nil, nil
}

func pushCreateResult(f *Frame, res callOutcome) {
	if res.created == nil {
		f.Stack.pushZero()
		return
	}
	f.Stack.pushZero().SetBytes(res.created.Bytes())
}

func opSelfdestruct(f *Frame) ([]byte, error) {
	if f.IsStatic {
		return nil, ErrStaticContextViolation
	}
	beneficiary, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	addr := types.BytesToAddress(beneficiary.Bytes())
	bal := f.evm.host.Balance(f.Address)
	if err := f.evm.host.Transfer(f.Address, addr, bal); err != nil {
		return nil, err
	}
	f.evm.host.SelfDestruct(f.Address, addr)
	if !f.evm.rules.EIP3529 {
		f.gas.Refund(GasSelfdestructRefundPreEIP3529)
	}
	return nil, nil
}
