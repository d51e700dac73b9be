package vm

import (
	"bytes"
	"testing"

	"github.com/evmcore/evmcore/types"
)

func newTestEVM(host Host) *EVM {
	return NewEVM(host, Config{Hardfork: Cancun})
}

var (
	testCaller = types.BytesToAddress([]byte{0x01})
	testTarget = types.BytesToAddress([]byte{0xCA, 0xFE}) // not a precompile address
)

// S1 - Simple addition: PUSH1 10, PUSH1 20, ADD, PUSH1 0, MSTORE, PUSH1 32,
// PUSH1 0, RETURN.
func TestScenarioS1SimpleAddition(t *testing.T) {
	code := []byte{0x60, 0x0A, 0x60, 0x14, 0x01, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xF3}
	host := newFakeHost()
	evm := newTestEVM(host)

	res := evm.Execute(Request{
		Kind: ReqCall, Caller: testCaller, Callee: testTarget,
		GasLimit: 100000, Code: code,
	})

	if res.Status != StatusSuccess {
		t.Fatalf("status = %v, want Success (halt=%v)", res.Status, res.Halt)
	}
	want := make([]byte, 32)
	want[31] = 30
	if !bytes.Equal(res.Output, want) {
		t.Fatalf("output = %x, want %x", res.Output, want)
	}
	if res.GasUsed != 24 {
		t.Fatalf("gas_used = %d, want 24", res.GasUsed)
	}
}

// S2 - Static jump: PUSH1 4, JUMP, INVALID, JUMPDEST(pc=4), PUSH1 0xAA, STOP.
// The INVALID at pc=3 must never execute.
func TestScenarioS2StaticJump(t *testing.T) {
	code := []byte{0x60, 0x04, 0x56, 0xFE, 0x5B, 0x60, 0xAA, 0x00}
	host := newFakeHost()
	evm := newTestEVM(host)

	res := evm.Execute(Request{
		Kind: ReqCall, Caller: testCaller, Callee: testTarget,
		GasLimit: 100000, Code: code,
	})

	if res.Status != StatusSuccess {
		t.Fatalf("status = %v, want Success (halt=%v)", res.Status, res.Halt)
	}
}

// S3 - Invalid jump: PUSH1 4, JUMP to pc=4, which is STOP (0x00) not
// JUMPDEST. All gas is consumed.
func TestScenarioS3InvalidJump(t *testing.T) {
	code := []byte{0x60, 0x04, 0x56, 0x00, 0x00}
	host := newFakeHost()
	evm := newTestEVM(host)

	const gasLimit = 100000
	res := evm.Execute(Request{
		Kind: ReqCall, Caller: testCaller, Callee: testTarget,
		GasLimit: gasLimit, Code: code,
	})

	if res.Status != StatusHalt || res.Halt != HaltInvalidJump {
		t.Fatalf("status/halt = %v/%v, want Halt/InvalidJump", res.Status, res.Halt)
	}
	if res.GasUsed != gasLimit {
		t.Fatalf("gas_used = %d, want %d (all gas consumed)", res.GasUsed, gasLimit)
	}
}

// S4 - REVERT returns data: PUSH1 0x42, PUSH1 0, MSTORE, PUSH1 32, PUSH1 0,
// REVERT.
func TestScenarioS4RevertReturnsData(t *testing.T) {
	code := []byte{0x60, 0x42, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xFD}
	host := newFakeHost()
	evm := newTestEVM(host)

	const gasLimit = 100000
	res := evm.Execute(Request{
		Kind: ReqCall, Caller: testCaller, Callee: testTarget,
		GasLimit: gasLimit, Code: code,
	})

	if res.Status != StatusRevert {
		t.Fatalf("status = %v, want Revert", res.Status)
	}
	want := make([]byte, 32)
	want[31] = 0x42
	if !bytes.Equal(res.Output, want) {
		t.Fatalf("output = %x, want %x", res.Output, want)
	}
	if res.GasUsed >= gasLimit {
		t.Fatalf("gas_used = %d, want < %d", res.GasUsed, gasLimit)
	}
}

// S5 - Static-context violation: a STATICCALL into a contract whose code
// is PUSH1 1, PUSH1 0, SSTORE, STOP must fail the call, leave the callee's
// storage untouched, and consume all the gas given to the child.
func TestScenarioS5StaticContextViolation(t *testing.T) {
	calleeCode := []byte{0x60, 0x01, 0x60, 0x00, 0x55, 0x00}
	host := newFakeHost()
	host.setCode(testTarget, calleeCode)

	evm := newTestEVM(host)

	var outer bytes.Buffer
	outer.Write([]byte{0x60, 0x00}) // retLength
	outer.Write([]byte{0x60, 0x00}) // retOffset
	outer.Write([]byte{0x60, 0x00}) // argsLength
	outer.Write([]byte{0x60, 0x00}) // argsOffset
	outer.WriteByte(0x73)           // PUSH20 <addr>
	outer.Write(testTarget.Bytes())
	outer.Write([]byte{0x61, 0xFF, 0xFF}) // PUSH2 gas
	outer.WriteByte(0xFA)                 // STATICCALL
	outer.Write([]byte{0x60, 0x00})       // PUSH1 0
	outer.WriteByte(0x52)                 // MSTORE
	outer.Write([]byte{0x60, 0x20})       // PUSH1 32
	outer.Write([]byte{0x60, 0x00})       // PUSH1 0
	outer.WriteByte(0xF3)                 // RETURN

	res := evm.Execute(Request{
		Kind: ReqCall, Caller: testCaller, Callee: testCaller,
		GasLimit: 200000, Code: outer.Bytes(),
	})

	if res.Status != StatusSuccess {
		t.Fatalf("outer status = %v, want Success (halt=%v)", res.Status, res.Halt)
	}
	wantFailure := make([]byte, 32) // success flag 0 == call failed
	if !bytes.Equal(res.Output, wantFailure) {
		t.Fatalf("outer output = %x, want all-zero (inner call failed)", res.Output)
	}
	if v := host.acct(testTarget).storage[types.Hash{}]; !v.IsZero() {
		t.Fatalf("callee storage slot 0 = %d, want unchanged (zero)", v.Uint64())
	}
}

// S6 - Out-of-gas in memory extension: PUSH2 0xFFFF, PUSH1 0, MSTORE, STOP
// with a gas limit of 10 must halt with OutOfGas and consume exactly 10 gas.
func TestScenarioS6OutOfGasMemoryExtension(t *testing.T) {
	code := []byte{0x61, 0xFF, 0xFF, 0x60, 0x00, 0x52, 0x00}
	host := newFakeHost()
	evm := newTestEVM(host)

	const gasLimit = 10
	res := evm.Execute(Request{
		Kind: ReqCall, Caller: testCaller, Callee: testTarget,
		GasLimit: gasLimit, Code: code,
	})

	if res.Status != StatusHalt || res.Halt != HaltOutOfGas {
		t.Fatalf("status/halt = %v/%v, want Halt/OutOfGas", res.Status, res.Halt)
	}
	if res.GasUsed != gasLimit {
		t.Fatalf("gas_used = %d, want %d", res.GasUsed, gasLimit)
	}
}
