package vm

import (
	"errors"
	"testing"
)

func TestMemoryExpansionCostQuadratic(t *testing.T) {
	cases := []struct {
		name       string
		current    uint64
		next       uint64
		wantCost   uint64
	}{
		{"no growth", 64, 64, 0},
		{"one word from zero", 0, 32, 3},
		{"two words from zero", 0, 64, 6},
		// 512 words: linear 3*512=1536, quad 512*512/512=512, total 2048.
		{"512 words from zero", 0, 512 * 32, 2048},
	}
	for _, c := range cases {
		got, err := memoryExpansionCost(c.current, c.next)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if got != c.wantCost {
			t.Fatalf("%s: memoryExpansionCost(%d,%d) = %d, want %d", c.name, c.current, c.next, got, c.wantCost)
		}
	}
}

func TestCallGas63of64Rule(t *testing.T) {
	rules := RulesFor(London)

	// available=6400 -> capped = 6400 - 6400/64 = 6300.
	forward, err := callGas(rules, 6400, 1000000, false)
	if err != nil {
		t.Fatalf("callGas: %v", err)
	}
	if forward != 6300 {
		t.Fatalf("forward = %d, want 6300", forward)
	}

	// Requesting less than the cap forwards exactly what was requested.
	forward, err = callGas(rules, 6400, 100, false)
	if err != nil {
		t.Fatalf("callGas: %v", err)
	}
	if forward != 100 {
		t.Fatalf("forward = %d, want 100", forward)
	}
}

func TestCallGasValueStipend(t *testing.T) {
	rules := RulesFor(London)
	forward, err := callGas(rules, 6400, 100, true)
	if err != nil {
		t.Fatalf("callGas: %v", err)
	}
	if forward != 100+GasCallStipend {
		t.Fatalf("forward = %d, want %d", forward, 100+GasCallStipend)
	}
}

func TestCallGasPreEIP150ForwardsAll(t *testing.T) {
	rules := RulesFor(Frontier)
	forward, err := callGas(rules, 1000, 1000, false)
	if err != nil {
		t.Fatalf("callGas: %v", err)
	}
	if forward != 1000 {
		t.Fatalf("forward = %d, want 1000 (all gas forwarded pre-EIP150)", forward)
	}
	if _, err := callGas(rules, 1000, 1001, false); !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("callGas requesting more than available: err = %v, want ErrOutOfGas", err)
	}
}

func TestCappedRefund(t *testing.T) {
	// London+ caps at gas_used/5.
	if got := CappedRefund(1000, 5, 300); got != 200 {
		t.Fatalf("CappedRefund = %d, want 200 (capped at 1000/5)", got)
	}
	// Below the cap, the raw refund passes through unchanged.
	if got := CappedRefund(1000, 5, 100); got != 100 {
		t.Fatalf("CappedRefund = %d, want 100", got)
	}
}

func TestGasMeterChargeLeavesStateUnchangedOnFailure(t *testing.T) {
	m := NewGasMeter(10)
	if err := m.Charge(5); err != nil {
		t.Fatalf("Charge(5): %v", err)
	}
	if err := m.Charge(100); !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("Charge(100): err = %v, want ErrOutOfGas", err)
	}
	if m.Remaining() != 5 {
		t.Fatalf("Remaining() = %d, want 5 (failed charge must not mutate the meter)", m.Remaining())
	}
}

func TestGasMeterChildSharesRefundCounter(t *testing.T) {
	parent := NewGasMeter(1000)
	child := parent.child(100)

	child.Refund(50)
	if parent.RefundCounter() != 50 {
		t.Fatalf("parent.RefundCounter() = %d, want 50 (refund counter shared with child)", parent.RefundCounter())
	}
}
