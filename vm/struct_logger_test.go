package vm

import (
	"strings"
	"testing"
)

func TestStructLogTracerCapturesStep(t *testing.T) {
	tr := NewStructLogTracer(DefaultTracerConfig())
	tr.PreStep(StepInfo{PC: 10, Mnemonic: "PUSH1", GasRemaining: 50000, Depth: 1})
	tr.PostStep(StepResult{GasCost: 3})

	logs := tr.Logs()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].PC != 10 || logs[0].Op != "PUSH1" || logs[0].Gas != 50000 || logs[0].GasCost != 3 || logs[0].Depth != 1 {
		t.Fatalf("unexpected log entry: %+v", logs[0])
	}
}

func TestStructLogTracerCapturesError(t *testing.T) {
	tr := NewStructLogTracer(DefaultTracerConfig())
	tr.PreStep(StepInfo{PC: 0, Mnemonic: "STOP"})
	tr.PostStep(StepResult{Err: ErrOutOfGas})

	if got := tr.Logs()[0].Error; got != ErrOutOfGas.Error() {
		t.Fatalf("Error = %q, want %q", got, ErrOutOfGas.Error())
	}
}

func TestStructLogTracerMemoryIsCopied(t *testing.T) {
	tr := NewStructLogTracer(DefaultTracerConfig())
	tr.PreStep(StepInfo{PC: 0, Mnemonic: "MLOAD"})
	mem := []byte{0xaa, 0xbb}
	tr.PostStep(StepResult{Memory: mem})

	mem[0] = 0xff // mutate the caller's slice after capture
	if tr.Logs()[0].Memory[0] != 0xaa {
		t.Fatalf("captured memory must be an independent copy")
	}
}

func TestStructLogTracerReset(t *testing.T) {
	tr := NewStructLogTracer(DefaultTracerConfig())
	tr.PreStep(StepInfo{PC: 0, Mnemonic: "ADD"})
	tr.PostStep(StepResult{})
	tr.Finalize(FinalResult{Failed: true})

	tr.Reset()
	if len(tr.Logs()) != 0 {
		t.Fatalf("expected 0 logs after Reset, got %d", len(tr.Logs()))
	}
	if tr.Final().Failed {
		t.Fatalf("expected Final() cleared after Reset")
	}
}

func TestFormatLogsContainsStepsAndStack(t *testing.T) {
	logs := []StructLog{
		{PC: 0, Op: "PUSH1", Gas: 1000, GasCost: 3, Depth: 1, Stack: []string{"0x42"}},
		{PC: 2, Op: "STOP", Gas: 997, Depth: 1},
	}
	out := FormatLogs(logs)
	for _, want := range []string{"PUSH1", "STOP", "0x42", "gas=1000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("FormatLogs output missing %q: %s", want, out)
		}
	}
}

func TestFormatLogsEmpty(t *testing.T) {
	if got := FormatLogs(nil); got != "" {
		t.Fatalf("FormatLogs(nil) = %q, want empty", got)
	}
}

// A traced SSTORE/LOG0 step must surface its storage write and emitted log
// in the corresponding StructLog entry (spec.md §4.C10 post_step's
// storage_changes/logs_emitted).
func TestStructLogTracerCapturesStorageAndLogs(t *testing.T) {
	host := newFakeHost()
	tr := NewStructLogTracer(DefaultTracerConfig())
	evm := NewEVM(host, Config{Hardfork: Cancun, Tracer: tr})

	// PUSH1 1, PUSH1 0, SSTORE, PUSH1 0, PUSH1 0, LOG0, STOP
	code := []byte{
		byte(PUSH1), 0x01, byte(PUSH1), 0x00, byte(SSTORE),
		byte(PUSH1), 0x00, byte(PUSH1), 0x00, byte(LOG0),
		byte(STOP),
	}
	host.setCode(testTarget, code)

	res := evm.Execute(Request{Kind: ReqCall, Caller: testCaller, Callee: testTarget, GasLimit: 100000})
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v, want Success (halt=%v)", res.Status, res.Halt)
	}

	logs := tr.Logs()
	var sawStorage, sawLog bool
	for _, l := range logs {
		if l.Op == "SSTORE" {
			if len(l.Storage) != 1 {
				t.Fatalf("SSTORE step: Storage = %v, want 1 entry", l.Storage)
			}
			sawStorage = true
		}
		if l.Op == "LOG0" {
			if len(l.Logs) != 1 || l.Logs[0].Address != testTarget {
				t.Fatalf("LOG0 step: Logs = %v, want 1 entry for %v", l.Logs, testTarget)
			}
			sawLog = true
		}
	}
	if !sawStorage || !sawLog {
		t.Fatalf("expected both an SSTORE and a LOG0 step to be captured, got %+v", logs)
	}
}

// Full S1-style integration: the tracer attached to a real EVM run must
// see one step per instruction and a successful Finalize.
func TestStructLogTracerIntegrationWithEVM(t *testing.T) {
	host := newFakeHost()
	tr := NewStructLogTracer(DefaultTracerConfig())
	evm := NewEVM(host, Config{Hardfork: Cancun, Tracer: tr})

	// PUSH1 5, PUSH1 3, ADD, PUSH1 0, MSTORE, PUSH1 32, PUSH1 0, RETURN
	code := []byte{
		byte(PUSH1), 0x05,
		byte(PUSH1), 0x03,
		byte(ADD),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	host.setCode(testTarget, code)

	res := evm.Execute(Request{Kind: ReqCall, Caller: testCaller, Callee: testTarget, GasLimit: 100000})
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v, want Success (halt=%v)", res.Status, res.Halt)
	}

	wantOps := []string{"PUSH1", "PUSH1", "ADD", "PUSH1", "MSTORE", "PUSH1", "PUSH1", "RETURN"}
	logs := tr.Logs()
	if len(logs) != len(wantOps) {
		t.Fatalf("got %d trace steps, want %d", len(logs), len(wantOps))
	}
	for i, op := range wantOps {
		if logs[i].Op != op {
			t.Fatalf("step %d: op = %s, want %s", i, logs[i].Op, op)
		}
	}
	if tr.Final().Failed {
		t.Fatalf("Final() reports failure, want success")
	}
}
