package vm

import (
	"testing"

	"github.com/evmcore/evmcore/types"
)

// PUSH1 0x5B; JUMPDEST -- the 0x5B byte is PUSH1's immediate operand, not
// an instruction, so it must not be recognized as a valid jump target
// (spec.md §8.1 "JUMPDEST soundness").
func TestAnalyzeJumpdestSoundness(t *testing.T) {
	code := []byte{byte(PUSH1), 0x5B, byte(JUMPDEST)}
	a := Analyze(code)

	if a.IsJumpdest(1) {
		t.Fatalf("pc=1 (PUSH1 data byte 0x5B) must not be a valid jumpdest")
	}
	if !a.IsJumpdest(2) {
		t.Fatalf("pc=2 (real JUMPDEST) must be a valid jumpdest")
	}
}

// S2's code: PUSH1 4, JUMP, INVALID, JUMPDEST(pc=4), PUSH1 0xAA, STOP.
// JUMPDEST at pc=4 must start a fresh block.
func TestAnalyzeBlockSplitsOnJumpdest(t *testing.T) {
	code := []byte{0x60, 0x04, 0x56, 0xFE, 0x5B, 0x60, 0xAA, 0x00}
	a := Analyze(code)

	idx, ok := a.InstructionIndex(4)
	if !ok {
		t.Fatalf("pc=4 should resolve to an instruction index")
	}
	if !a.Instructions[idx].BlockStart {
		t.Fatalf("JUMPDEST instruction must start its block")
	}
	if a.Instructions[idx].Op != JUMPDEST {
		t.Fatalf("instruction at pc=4 = %v, want JUMPDEST", a.Instructions[idx].Op)
	}
}

// Analyzer determinism (spec.md §8.2): analyzing identical bytes twice
// must produce equal instruction streams and block metrics.
func TestAnalyzeIsDeterministic(t *testing.T) {
	code := []byte{0x60, 0x0A, 0x60, 0x14, 0x01, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xF3}
	a1 := Analyze(code)
	a2 := Analyze(code)

	if len(a1.Instructions) != len(a2.Instructions) {
		t.Fatalf("instruction count differs: %d vs %d", len(a1.Instructions), len(a2.Instructions))
	}
	for i := range a1.Instructions {
		if a1.Instructions[i].Op != a2.Instructions[i].Op || a1.Instructions[i].PC != a2.Instructions[i].PC {
			t.Fatalf("instruction %d differs between runs", i)
		}
	}
	if len(a1.Blocks) != len(a2.Blocks) {
		t.Fatalf("block count differs: %d vs %d", len(a1.Blocks), len(a2.Blocks))
	}
	for i := range a1.Blocks {
		if a1.Blocks[i] != a2.Blocks[i] {
			t.Fatalf("block %d metrics differ: %+v vs %+v", i, a1.Blocks[i], a2.Blocks[i])
		}
	}
}

// A PUSH whose operand bytes run past the end of code is implicitly
// zero-padded, never a parse error (spec.md "Analyze never fails").
func TestAnalyzeTruncatedPushIsZeroPadded(t *testing.T) {
	code := []byte{byte(PUSH2), 0xAB} // one operand byte missing
	a := Analyze(code)

	if len(a.Instructions) != 1 {
		t.Fatalf("expected exactly one instruction, got %d", len(a.Instructions))
	}
	if !a.Instructions[0].Push.IsUint64() || a.Instructions[0].Push.Uint64() != 0xAB00 {
		t.Fatalf("Push value = %v, want 0xAB00 (missing low byte zero-padded)", a.Instructions[0].Push.Uint64())
	}
}

func TestCacheGetOrAnalyzeReusesResult(t *testing.T) {
	c := NewCache()
	code := []byte{byte(STOP)}
	hash := types.BytesToHash([]byte{1, 2, 3})

	a1, hit1 := c.GetOrAnalyze(hash, code)
	if hit1 {
		t.Fatalf("first call should be a miss")
	}
	a2, hit2 := c.GetOrAnalyze(hash, code)
	if !hit2 {
		t.Fatalf("second call should be a hit")
	}
	if a1 != a2 {
		t.Fatalf("cache returned different *AnalyzedCode instances for the same hash")
	}
}
