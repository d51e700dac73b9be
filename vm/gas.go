package vm

import "math"

// Static per-opcode gas costs (the "constant" tier of the Yellow Paper's
// gas schedule). Dynamic costs are computed in gas_table.go.
const (
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10
	GasExtStep     uint64 = 20

	GasMemory       uint64 = 3 // per-word linear term of the memory formula
	GasKeccak256    uint64 = 30
	GasKeccak256Word uint64 = 6
	GasCopy         uint64 = 3 // per-word cost of *COPY opcodes
	GasLogBase      uint64 = 375
	GasLogTopic     uint64 = 375
	GasLogData      uint64 = 8

	GasCreate          uint64 = 32000
	GasCreateData      uint64 = 200 // per byte of deployed code, spec.md §4.C9 step 7
	GasCallValue       uint64 = 9000
	GasCallStipend     uint64 = 2300
	GasNewAccount      uint64 = 25000
	GasSelfdestruct    uint64 = 5000
	GasSelfdestructNew uint64 = 25000

	GasSstoreSet      uint64 = 20000
	GasSstoreReset    uint64 = 5000
	GasSstoreClearRefundPreLondon uint64 = 15000
	GasSstoreClearRefundPostLondon uint64 = 4800
	GasSstoreSentryIstanbul uint64 = 2300

	GasColdSload       uint64 = 2100 // EIP-2929
	GasColdAccountAccess uint64 = 2600
	GasWarmStorageRead uint64 = 100
	GasSelfdestructRefundPreEIP3529 uint64 = 24000

	// Pre-Berlin flat costs, superseded by EIP-2929 cold/warm pricing.
	// Both hold their final (post-Istanbul repricing) pre-Berlin value;
	// earlier forks' 50/200-gas SLOAD/BALANCE variants are not modeled.
	GasSloadLegacy   uint64 = 800
	GasBalanceLegacy uint64 = 700

	GasExpByte         uint64 = 50
	GasExpByteFrontier uint64 = 10

	GasInitCodeWord uint64 = 2 // EIP-3860, per word of init code

	GasBlockHash uint64 = 20

	// MaxCallGas is the largest value provide_to_child will ever forward;
	// derived from uint64 arithmetic, never a protocol constant per se.
	MaxCallGas = math.MaxUint64
)

// GasMeter is C4: it charges constant and dynamic costs against a frame's
// remaining gas and tracks the transaction-wide refund counter.
//
// The refund counter conceptually belongs to the transaction, not the
// frame (spec.md §9 "Inner-call refunds aggregate to the top frame"), so
// Frame.gas shares one *refund pointer across the whole call tree;
// only remaining is frame-local.
type GasMeter struct {
	remaining uint64
	refund    *uint64
}

// NewGasMeter creates a top-level meter with its own refund counter.
func NewGasMeter(gas uint64) *GasMeter {
	var r uint64
	return &GasMeter{remaining: gas, refund: &r}
}

// child creates a meter for a nested frame that shares this meter's
// refund counter but starts with its own gas allowance.
func (g *GasMeter) child(gas uint64) *GasMeter {
	return &GasMeter{remaining: gas, refund: g.refund}
}

// Remaining returns the gas left in this frame.
func (g *GasMeter) Remaining() uint64 { return g.remaining }

// Charge subtracts amount from remaining. Returns ErrOutOfGas (and leaves
// remaining untouched) if amount exceeds what's left, guaranteeing the
// "insufficient gas leaves state unchanged except for the gas counter
// going to zero" ordering spec.md §4.C4 requires -- callers that must
// zero the meter on failure do so explicitly via Exhaust.
func (g *GasMeter) Charge(amount uint64) error {
	if amount > g.remaining {
		return ErrOutOfGas
	}
	g.remaining -= amount
	return nil
}

// Exhaust zeroes the remaining gas; called when an exceptional halt
// forfeits all gas in the frame (spec.md §7 propagation policy).
func (g *GasMeter) Exhaust() {
	g.remaining = 0
}

// Refund adds amount to the shared refund counter.
func (g *GasMeter) Refund(amount uint64) {
	*g.refund += amount
}

// SubRefund removes amount from the shared refund counter (used when an
// SSTORE undoes an earlier refund-granting transition). Saturates at 0.
func (g *GasMeter) SubRefund(amount uint64) {
	if amount > *g.refund {
		*g.refund = 0
		return
	}
	*g.refund -= amount
}

// RefundCounter returns the raw (uncapped) refund accumulated so far.
func (g *GasMeter) RefundCounter() uint64 { return *g.refund }

// CappedRefund returns the refund capped at gasUsed/quotient, the
// finalization rule of spec.md §4.C4 / §9.
func CappedRefund(gasUsed uint64, quotient uint64, raw uint64) uint64 {
	limit := gasUsed / quotient
	if raw > limit {
		return limit
	}
	return raw
}

// callGas implements the 63/64 rule (EIP-150) plus the value-transfer
// stipend (spec.md §4.C4 provide_to_child / §4.C9 step 4).
//
//   - available is the parent's gas remaining AFTER the opcode's own base
//     cost and any access-list/memory dynamic gas have already been
//     charged (only the 1/64 reservation remains to compute).
//   - requested is the gas operand the CALL*/CREATE* opcode pushed.
//   - rules.EIP150 false (pre-Tangerine-Whistle) forwards all of available.
func callGas(rules Rules, available, requested uint64, isValueCall bool) (childGas uint64, err error) {
	if rules.EIP150 {
		capped := available - available/64
		if requested > capped {
			childGas = capped
		} else {
			childGas = requested
		}
	} else {
		if requested > available {
			return 0, ErrOutOfGas
		}
		childGas = requested
	}
	if isValueCall {
		childGas += GasCallStipend
	}
	return childGas, nil
}

// memoryGasCost computes C(words) = 3*words + floor(words^2/512), the
// quadratic memory-expansion formula of spec.md §4.C3.
func memoryGasCost(words uint64) uint64 {
	linear := words * GasMemory
	quad := (words * words) / 512
	return linear + quad
}

// memoryExpansionCost returns the incremental gas to grow memory from its
// current size (in bytes) to newSize (in bytes), or ErrGasUintOverflow if
// newSize's word-rounding would overflow uint64. Returns 0 (and no resize
// is needed) if newSize does not exceed the current size.
func memoryExpansionCost(currentSize uint64, newSize uint64) (uint64, error) {
	if newSize <= currentSize {
		return 0, nil
	}
	if newSize > math.MaxUint64-31 {
		return 0, ErrGasUintOverflow
	}
	newWords := toWordSize(newSize)
	// newWords^2 must not overflow; newWords can reach (2^64)/32, so word
	// counts above MaxUint32 are rejected as ErrGasUintOverflow.
	if newWords > math.MaxUint32 {
		return 0, ErrGasUintOverflow
	}
	newCost := memoryGasCost(newWords)
	oldWords := toWordSize(currentSize)
	oldCost := memoryGasCost(oldWords)
	if newCost < oldCost {
		// Only possible if currentSize wasn't actually word-aligned; by
		// invariant (spec.md §3.3) it always is at a charge boundary.
		return 0, nil
	}
	return newCost - oldCost, nil
}

// expGas returns the dynamic part of EXP's cost: 50*bytelen(e) from
// Spurious Dragon on, or 10*bytelen(e) before it (spec.md §4.C1). The flat
// 10 is EXP's constantGas (GasSlowStep), charged with its block.
func expGas(rules Rules, exponentByteLen int) uint64 {
	perByte := GasExpByteFrontier
	if rules.EIP170 {
		perByte = GasExpByte
	}
	return uint64(exponentByteLen) * perByte
}
