package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/crypto"
	"github.com/evmcore/evmcore/types"
)

// Every handler below implements executionFunc: it reads its operands off
// f.Stack (already validated against the block's MinStack/MaxGrowth by
// the interpreter, spec.md §4.C8 step 1) and leaves its result on top.
// Gas has already been charged by the time execute runs (spec.md §4.C8
// step 3 ordering: constant -> dynamic/memory -> resize -> execute).

func opStop(f *Frame) ([]byte, error) { return nil, nil }

func opAdd(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.Add(&x, y)
	return nil, nil
}

func opSub(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.Sub(&x, y)
	return nil, nil
}

func opMul(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.Mul(&x, y)
	return nil, nil
}

func opDiv(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.Div(&x, y)
	return nil, nil
}

func opSdiv(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.SDiv(&x, y)
	return nil, nil
}

func opMod(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.Mod(&x, y)
	return nil, nil
}

func opSmod(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.SMod(&x, y)
	return nil, nil
}

func opAddmod(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	z := f.Stack.Peek()
	z.AddMod(&x, &y, z)
	return nil, nil
}

func opMulmod(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	z := f.Stack.Peek()
	z.MulMod(&x, &y, z)
	return nil, nil
}

func opExp(f *Frame) ([]byte, error) {
	base, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	exponent := f.Stack.Peek()
	exponent.Exp(&base, exponent)
	return nil, nil
}

func opSignExtend(f *Frame) ([]byte, error) {
	back, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	num := f.Stack.Peek()
	num.ExtendSign(num, &back)
	return nil, nil
}

func opLt(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opGt(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSlt(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSgt(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opEq(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opIszero(f *Frame) ([]byte, error) {
	x := f.Stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil, nil
}

func opAnd(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.And(&x, y)
	return nil, nil
}

func opOr(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.Or(&x, y)
	return nil, nil
}

func opXor(f *Frame) ([]byte, error) {
	x, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	y := f.Stack.Peek()
	y.Xor(&x, y)
	return nil, nil
}

func opNot(f *Frame) ([]byte, error) {
	x := f.Stack.Peek()
	x.Not(x)
	return nil, nil
}

func opByte(f *Frame) ([]byte, error) {
	th, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	val := f.Stack.Peek()
	val.Byte(&th)
	return nil, nil
}

func opShl(f *Frame) ([]byte, error) {
	shift, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	value := f.Stack.Peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opShr(f *Frame) ([]byte, error) {
	shift, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	value := f.Stack.Peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opSar(f *Frame) ([]byte, error) {
	shift, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	value := f.Stack.Peek()
	if shift.GtUint64(256) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return nil, nil
	}
	value.SRsh(value, uint(shift.Uint64()))
	return nil, nil
}

func opKeccak256(f *Frame) ([]byte, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	size := f.Stack.Peek()
	data := f.Memory.GetPtr(offset.Uint64(), size.Uint64())
	size.SetBytes(crypto.Keccak256(data))
	return nil, nil
}

// --- Environment ---

func opAddress(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetBytes(f.Address.Bytes())
	return nil, nil
}

func opBalance(f *Frame) ([]byte, error) {
	addr := types.BytesToAddress(f.Stack.Peek().Bytes())
	bal := f.evm.host.Balance(addr)
	f.Stack.Peek().Set(bal)
	return nil, nil
}

func opOrigin(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetBytes(f.evm.host.TxContext().Origin.Bytes())
	return nil, nil
}

func opCaller(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetBytes(f.Caller.Bytes())
	return nil, nil
}

func opCallValue(f *Frame) ([]byte, error) {
	f.Stack.pushZero().Set(&f.Value)
	return nil, nil
}

func opCalldataLoad(f *Frame) ([]byte, error) {
	offset := f.Stack.Peek()
	var buf [32]byte
	if offset.IsUint64() {
		o := offset.Uint64()
		if o < uint64(len(f.Input)) {
			n := copy(buf[:], f.Input[o:])
			_ = n
		}
	}
	offset.SetBytes(buf[:])
	return nil, nil
}

func opCalldataSize(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetUint64(uint64(len(f.Input)))
	return nil, nil
}

func opCalldataCopy(f *Frame) ([]byte, error) {
	destOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	length, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	data := boundedSlice(f.Input, offset.Uint64(), length.Uint64())
	f.Memory.Set(destOffset.Uint64(), data)
	return nil, nil
}

func opCodeSize(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetUint64(uint64(len(f.Code())))
	return nil, nil
}

func opCodeCopy(f *Frame) ([]byte, error) {
	destOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	length, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	data := boundedSlice(f.Code(), offset.Uint64(), length.Uint64())
	f.Memory.Set(destOffset.Uint64(), data)
	return nil, nil
}

func opGasPrice(f *Frame) ([]byte, error) {
	f.Stack.pushZero().Set(f.evm.host.TxContext().GasPrice)
	return nil, nil
}

func opExtCodeSize(f *Frame) ([]byte, error) {
	addr := types.BytesToAddress(f.Stack.Peek().Bytes())
	f.Stack.Peek().SetUint64(uint64(f.evm.host.CodeSize(addr)))
	return nil, nil
}

func opExtCodeCopy(f *Frame) ([]byte, error) {
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	destOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	length, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	addr := types.BytesToAddress(addrWord.Bytes())
	code := f.evm.host.Code(addr)
	data := boundedSlice(code, offset.Uint64(), length.Uint64())
	f.Memory.Set(destOffset.Uint64(), data)
	return nil, nil
}

func opReturndataSize(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetUint64(uint64(len(f.returnData)))
	return nil, nil
}

func opReturndataCopy(f *Frame) ([]byte, error) {
	destOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	length, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	end := offset.Uint64() + length.Uint64()
	if end < offset.Uint64() || end > uint64(len(f.returnData)) {
		return nil, ErrReturnDataOutOfBounds
	}
	f.Memory.Set(destOffset.Uint64(), f.returnData[offset.Uint64():end])
	return nil, nil
}

func opExtCodeHash(f *Frame) ([]byte, error) {
	addr := types.BytesToAddress(f.Stack.Peek().Bytes())
	if !f.evm.host.AccountExists(addr) || f.evm.host.Empty(addr) {
		f.Stack.Peek().Clear()
		return nil, nil
	}
	f.Stack.Peek().SetBytes(f.evm.host.CodeHash(addr).Bytes())
	return nil, nil
}

// --- Block ---

func opBlockhash(f *Frame) ([]byte, error) {
	num := f.Stack.Peek()
	h := f.evm.host.BlockHash(num.Uint64())
	num.SetBytes(h.Bytes())
	return nil, nil
}

func opCoinbase(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetBytes(f.evm.host.BlockContext().Coinbase.Bytes())
	return nil, nil
}

func opTimestamp(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetUint64(f.evm.host.BlockContext().Time)
	return nil, nil
}

func opNumber(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetUint64(f.evm.host.BlockContext().BlockNumber)
	return nil, nil
}

func opPrevRandao(f *Frame) ([]byte, error) {
	f.Stack.pushZero().Set(f.evm.host.BlockContext().Difficulty)
	return nil, nil
}

func opGasLimit(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetUint64(f.evm.host.BlockContext().GasLimit)
	return nil, nil
}

func opChainID(f *Frame) ([]byte, error) {
	f.Stack.pushZero().Set(f.evm.host.BlockContext().ChainID)
	return nil, nil
}

func opSelfBalance(f *Frame) ([]byte, error) {
	f.Stack.pushZero().Set(f.evm.host.Balance(f.Address))
	return nil, nil
}

func opBaseFee(f *Frame) ([]byte, error) {
	f.Stack.pushZero().Set(f.evm.host.BlockContext().BaseFee)
	return nil, nil
}

func opBlobHash(f *Frame) ([]byte, error) {
	idx := f.Stack.Peek()
	hashes := f.evm.host.TxContext().BlobHashes
	if idx.IsUint64() && idx.Uint64() < uint64(len(hashes)) {
		idx.SetBytes(hashes[idx.Uint64()].Bytes())
	} else {
		idx.Clear()
	}
	return nil, nil
}

func opBlobBaseFee(f *Frame) ([]byte, error) {
	f.Stack.pushZero().Set(f.evm.host.BlockContext().BlobBaseFee)
	return nil, nil
}

// --- Stack, memory, storage, flow ---

func opPop(f *Frame) ([]byte, error) {
	_, err := f.Stack.Pop()
	return nil, err
}

func opMload(f *Frame) ([]byte, error) {
	offset := f.Stack.Peek()
	f.Memory.Word(offset.Uint64(), offset)
	return nil, nil
}

func opMstore(f *Frame) ([]byte, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	val, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	f.Memory.SetWord(offset.Uint64(), &val)
	return nil, nil
}

func opMstore8(f *Frame) ([]byte, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	val, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	f.Memory.SetByte(offset.Uint64(), byte(val.Uint64()))
	return nil, nil
}

func opMcopy(f *Frame) ([]byte, error) {
	dst, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	src, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	length, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	f.Memory.CopyWithin(dst.Uint64(), src.Uint64(), length.Uint64())
	return nil, nil
}

func opSload(f *Frame) ([]byte, error) {
	key := f.Stack.Peek()
	keyHash := types.Hash(key.Bytes32())
	v := f.evm.host.SLoad(f.Address, keyHash)
	key.Set(&v)
	return nil, nil
}

func opSstore(f *Frame) ([]byte, error) {
	if f.IsStatic {
		return nil, ErrStaticContextViolation
	}
	_, err := f.Stack.Pop() // key already consumed by gasSstore via Back(0); pop both operands here
	if err != nil {
		return nil, err
	}
	_, err = f.Stack.Pop()
	return nil, err
}

func opJump(f *Frame) ([]byte, error) {
	dest, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	return nil, f.jumpTo(&dest)
}

func opJumpi(f *Frame) ([]byte, error) {
	dest, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	cond, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	if cond.IsZero() {
		f.ip++
		return nil, nil
	}
	return nil, f.jumpTo(&dest)
}

// jumpTo resolves dest to a validated JUMPDEST and repositions f.ip there;
// JUMP/JUMPI are marked operation.jumps so the interpreter does not
// additionally advance ip after calling this (spec.md §4.C8 step 5).
func (f *Frame) jumpTo(dest *uint256.Int) error {
	if !dest.IsUint64() {
		return ErrInvalidJump
	}
	pc := dest.Uint64()
	if !f.analysis.IsJumpdest(pc) {
		return ErrInvalidJump
	}
	idx, ok := f.analysis.InstructionIndex(pc)
	if !ok {
		return ErrInvalidJump
	}
	f.ip = idx
	return nil
}

func opPc(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetUint64(f.PC())
	return nil, nil
}

func opMsize(f *Frame) ([]byte, error) {
	f.Stack.pushZero().SetUint64(uint64(f.Memory.Len()))
	return nil, nil
}

func opGas(f *Frame) ([]byte, error) {
	// The block header pre-charged every instruction's static gas,
	// including GAS's own and every later instruction's in the block;
	// GasCorrection refunds the part not yet conceptually spent
	// (spec.md §4.C8 "GAS opcode correction").
	instr := f.analysis.Instructions[f.ip]
	f.Stack.pushZero().SetUint64(f.GasRemaining() + instr.GasCorrection)
	return nil, nil
}

func opJumpdest(f *Frame) ([]byte, error) { return nil, nil }

func opPush(f *Frame) ([]byte, error) {
	instr := f.analysis.Instructions[f.ip]
	f.Stack.pushZero().Set(&instr.Push)
	return nil, nil
}

func makeDup(n int) executionFunc {
	return func(f *Frame) ([]byte, error) {
		f.Stack.Dup(n)
		return nil, nil
	}
}

func makeSwap(n int) executionFunc {
	return func(f *Frame) ([]byte, error) {
		f.Stack.Swap(n)
		return nil, nil
	}
}

func makeLog(topics int) executionFunc {
	return func(f *Frame) ([]byte, error) {
		if f.IsStatic {
			return nil, ErrStaticContextViolation
		}
		offset, err := f.Stack.Pop()
		if err != nil {
			return nil, err
		}
		size, err := f.Stack.Pop()
		if err != nil {
			return nil, err
		}
		data := f.Memory.GetCopy(offset.Uint64(), size.Uint64())
		hashes := make([]types.Hash, topics)
		for i := 0; i < topics; i++ {
			t, err := f.Stack.Pop()
			if err != nil {
				return nil, err
			}
			hashes[i] = types.Hash(t.Bytes32())
		}
		f.evm.host.EmitLog(f.Address, hashes, data)
		f.recordLog(types.Log{Address: f.Address, Topics: hashes, Data: data})
		return nil, nil
	}
}

func opReturn(f *Frame) ([]byte, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	size, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	out := f.Memory.GetCopy(offset.Uint64(), size.Uint64())
	f.output = out
	return out, nil
}

func opRevert(f *Frame) ([]byte, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	size, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	out := f.Memory.GetCopy(offset.Uint64(), size.Uint64())
	f.output = out
	return out, ErrExecutionReverted
}

func opInvalidOp(f *Frame) ([]byte, error) { return nil, ErrInvalidOpcode }

func opTload(f *Frame) ([]byte, error) {
	key := f.Stack.Peek()
	v := f.evm.host.TLoad(f.Address, types.Hash(key.Bytes32()))
	key.Set(&v)
	return nil, nil
}

func opTstore(f *Frame) ([]byte, error) {
	if f.IsStatic {
		return nil, ErrStaticContextViolation
	}
	key, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	val, err := f.Stack.Pop()
	if err != nil {
		return nil, err
	}
	f.evm.host.TStore(f.Address, types.Hash(key.Bytes32()), val)
	return nil, nil
}

// boundedSlice returns data[offset:offset+length], zero-padded past the
// end of data -- the semantics CALLDATACOPY/CODECOPY/EXTCODECOPY all
// share when the requested range runs off the end of their source
// (spec.md §4.C1 / Yellow Paper Appendix H).
func boundedSlice(data []byte, offset, length uint64) []byte {
	out := make([]byte, length)
	if offset >= uint64(len(data)) {
		return out
	}
	n := copy(out, data[offset:])
	_ = n
	return out
}
