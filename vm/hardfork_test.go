package vm

import "testing"

// EIP-6780 is gated by fork the same way every other rule flag is; the
// interpreter itself never branches on it (opSelfdestruct always calls
// host.SelfDestruct unconditionally), so this only checks that Rules
// carries the flag correctly for a Host to consult (DESIGN.md "pushed to
// Host").
func TestRulesEIP6780GatedByCancun(t *testing.T) {
	if RulesFor(Shanghai).EIP6780 {
		t.Fatalf("EIP6780 = true pre-Cancun, want false")
	}
	if !RulesFor(Cancun).EIP6780 {
		t.Fatalf("EIP6780 = false at Cancun, want true")
	}
}
