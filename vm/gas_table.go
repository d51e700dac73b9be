package vm

import "github.com/evmcore/evmcore/types"

// Dynamic gas cost functions: one per opcode family that cannot be priced
// as a flat constant (spec.md §4.C4 "Dynamic gas"). Each takes the frame
// mid-step, after operands are visible on the stack but before they are
// popped by the handler, and returns the additional charge beyond the
// opcode's constantGas.

// gasMemoryExpansion is the dynamicGas for every opcode whose only
// variable cost is growing Memory (MLOAD, MSTORE, *COPY, KECCAK256,
// RETURN/REVERT, LOG*). The op's memorySize func has already computed the
// touched byte range.
func gasMemoryExpansion(f *Frame, memSize uint64) (uint64, error) {
	return memoryExpansionCost(uint64(f.Memory.Len()), memSize)
}

// gasKeccak256 adds the per-word hashing cost on top of memory expansion.
func gasKeccak256(f *Frame, memSize uint64) (uint64, error) {
	expansion, err := gasMemoryExpansion(f, memSize)
	if err != nil {
		return 0, err
	}
	size := f.Stack.Back(1).Uint64()
	words := toWordSize(size)
	return expansion + words*GasKeccak256Word, nil
}

// gasCopy adds the per-word copy cost (CALLDATACOPY, CODECOPY,
// RETURNDATACOPY, EXTCODECOPY's data argument) on top of memory expansion.
// lenIdx is the stack position (0 = top) of the length operand.
func gasCopy(f *Frame, memSize uint64, lenIdx int) (uint64, error) {
	expansion, err := gasMemoryExpansion(f, memSize)
	if err != nil {
		return 0, err
	}
	size := f.Stack.Back(lenIdx).Uint64()
	words := toWordSize(size)
	return expansion + words*GasCopy, nil
}

// gasExtCodeCopy handles EXTCODECOPY: access-list cold/warm charge for the
// target address plus the copy's memory/word cost.
func gasExtCodeCopy(f *Frame, memSize uint64) (uint64, error) {
	copyCost, err := gasCopy(f, memSize, 3)
	if err != nil {
		return 0, err
	}
	addr := types.BytesToAddress(f.Stack.Back(0).Bytes())
	return copyCost + accessAddressCost(f, addr), nil
}

// accessAddressCost returns the EIP-2929 cold/warm charge for touching
// addr, warming it as a side effect. Pre-Berlin it is the flat legacy
// 700-gas account-access cost (GasBalanceLegacy) that CALL-family opcodes
// and EXTCODECOPY pay, since their constantGas is 0.
func accessAddressCost(f *Frame, addr types.Address) uint64 {
	if !f.evm.rules.EIP2929 {
		return GasBalanceLegacy
	}
	if f.evm.host.AccessAddress(addr) == Cold {
		return GasColdAccountAccess
	}
	return GasWarmStorageRead
}

// accessStorageCost is the same idea for SLOAD's target slot.
func accessStorageCost(f *Frame, addr types.Address, key types.Hash) uint64 {
	if !f.evm.rules.EIP2929 {
		return GasSloadLegacy
	}
	if f.evm.host.AccessStorageSlot(addr, key) == Cold {
		return GasColdSload
	}
	return GasWarmStorageRead
}

// gasBalanceLike prices BALANCE/EXTCODESIZE/EXTCODEHASH: EIP-2929 cold/warm if
// active, else a flat legacy constant.
func gasBalanceLike(f *Frame) uint64 {
	addr := types.BytesToAddress(f.Stack.Back(0).Bytes())
	if !f.evm.rules.EIP2929 {
		return GasBalanceLegacy
	}
	return accessAddressCost(f, addr)
}

// gasSload prices SLOAD.
func gasSload(f *Frame) uint64 {
	key := types.Hash(f.Stack.Back(0).Bytes32())
	return accessStorageCost(f, f.Address, key)
}

// gasSstore implements the full EIP-2200/2929/3529 SSTORE pricing and
// refund bookkeeping (spec.md §4.C4 "SSTORE").
func gasSstore(f *Frame) (uint64, error) {
	if f.evm.rules.HasIstanbulOps {
		if f.GasRemaining() <= GasSstoreSentryIstanbul {
			return 0, ErrOutOfGas
		}
	}
	key := types.Hash(f.Stack.Back(0).Bytes32())
	newValue := *f.Stack.Back(1)

	var cold uint64
	if f.evm.rules.EIP2929 {
		if f.evm.host.AccessStorageSlot(f.Address, key) == Cold {
			cold = GasColdSload
		}
	}

	res := f.evm.host.SStore(f.Address, key, newValue)
	f.recordStorageChange(key, newValue)

	var gas uint64
	switch {
	case res.Current.Eq(&res.New):
		gas = GasWarmStorageRead
	case res.Original.Eq(&res.Current):
		if res.Original.IsZero() {
			gas = GasSstoreSet
		} else {
			gas = GasSstoreReset
			if res.New.IsZero() {
				f.gas.Refund(sstoreClearRefund(f.evm.rules))
			}
		}
	default:
		gas = GasWarmStorageRead
		if !res.Original.IsZero() {
			if res.Current.IsZero() {
				f.gas.SubRefund(sstoreClearRefund(f.evm.rules))
			}
			if res.New.IsZero() {
				f.gas.Refund(sstoreClearRefund(f.evm.rules))
			}
		}
		if res.Original.Eq(&res.New) {
			if res.Original.IsZero() {
				f.gas.Refund(GasSstoreSet - GasWarmStorageRead)
			} else {
				f.gas.Refund(GasSstoreReset - GasWarmStorageRead)
			}
		}
	}
	return gas + cold, nil
}

func sstoreClearRefund(r Rules) uint64 {
	if r.EIP3529 {
		return GasSstoreClearRefundPostLondon
	}
	return GasSstoreClearRefundPreLondon
}

// gasExp computes EXP's dynamic cost from the exponent's byte length.
func gasExp(f *Frame) uint64 {
	exp := f.Stack.Back(1)
	return expGas(f.evm.rules, byteLen(exp))
}

func byteLen(v interface{ BitLen() int }) int {
	bits := v.BitLen()
	return (bits + 7) / 8
}

// gasLog prices LOG0..LOG4: memory expansion plus per-topic and per-byte
// charges.
func gasLog(f *Frame, memSize uint64, topics int) (uint64, error) {
	expansion, err := gasMemoryExpansion(f, memSize)
	if err != nil {
		return 0, err
	}
	size := f.Stack.Back(1).Uint64()
	return expansion + uint64(topics)*GasLogTopic + size*GasLogData, nil
}

// gasSelfdestruct prices SELFDESTRUCT: flat base plus EIP-2929 cold
// beneficiary access plus EIP-161-style new-account surcharge when the
// beneficiary is empty (Host.Empty) and the transfer is non-zero. The flat
// base is SELFDESTRUCT's constantGas, not part of this function's result.
func gasSelfdestruct(f *Frame) uint64 {
	beneficiary := types.BytesToAddress(f.Stack.Back(0).Bytes())
	var gas uint64
	if f.evm.rules.EIP2929 && f.evm.host.AccessAddress(beneficiary) == Cold {
		gas += GasColdAccountAccess
	}
	bal := f.evm.host.Balance(f.Address)
	if !bal.IsZero() && f.evm.host.Empty(beneficiary) {
		gas += GasNewAccount
	}
	return gas
}

// gasCall prices the CALL-family opcodes: access-list cost for the
// target, value-transfer surcharge, new-account surcharge, plus memory
// expansion. The actual child-gas reservation (63/64 rule) happens in
// call.go once this charge has been deducted.
func gasCall(f *Frame, kind CallKind, memSize uint64) (uint64, error) {
	expansion, err := gasMemoryExpansion(f, memSize)
	if err != nil {
		return 0, err
	}
	var addr types.Address
	var hasValue bool
	switch kind {
	case CallKindCall, CallKindCallCode:
		addr = types.BytesToAddress(f.Stack.Back(1).Bytes())
		hasValue = !f.Stack.Back(2).IsZero()
	default: // DELEGATECALL, STATICCALL
		addr = types.BytesToAddress(f.Stack.Back(1).Bytes())
	}

	gas := accessAddressCost(f, addr)
	// CALLCODE transfers value to-self (its target address is always the
	// currently executing contract, never a new account), so it shares the
	// value-transfer surcharge with CALL but never the new-account one.
	if (kind == CallKindCall || kind == CallKindCallCode) && hasValue {
		gas += GasCallValue
		if kind == CallKindCall && f.evm.host.Empty(addr) {
			gas += GasNewAccount
		}
	}
	return expansion + gas, nil
}

// gasCreate prices CREATE/CREATE2's init-code-size metering (EIP-3860) on
// top of memory expansion; the flat GasCreate/GasCreate2-per-word hashing
// cost for CREATE2's salt is added by its own handler.
func gasCreate(f *Frame, memSize uint64, isCreate2 bool) (uint64, error) {
	expansion, err := gasMemoryExpansion(f, memSize)
	if err != nil {
		return 0, err
	}
	size := f.Stack.Back(2).Uint64()
	var initCodeWordCost uint64
	if f.evm.rules.EIP3860 {
		initCodeWordCost = toWordSize(size) * GasInitCodeWord
	}
	var hashCost uint64
	if isCreate2 {
		hashCost = toWordSize(size) * GasKeccak256Word
	}
	return expansion + initCodeWordCost + hashCost, nil
}
