package vm

import "math"

// run is the C8 main dispatch loop: it walks frame's analyzed instruction
// stream, charging each basic block's static gas in one shot at its first
// instruction, then validating and charging every instruction's dynamic
// gas before executing it (spec.md §4.C8). It returns the frame's final
// output and a nil error on ordinary termination (STOP/RETURN falling off
// the end of code), ErrExecutionReverted with the revert data on REVERT,
// or any other sentinel error from the exceptional-halt taxonomy.
func (e *EVM) run(frame *Frame) ([]byte, error) {
	tracer := e.config.Tracer
	code := frame.analysis

	for frame.ip < len(code.Instructions) {
		instr := &code.Instructions[frame.ip]

		if instr.BlockStart {
			block := code.Blocks[instr.Block]
			if frame.Stack.Len() < block.MinStack {
				return frame.output, ErrStackUnderflow
			}
			if frame.Stack.Len()+block.MaxGrowth > stackLimit {
				return frame.output, ErrStackOverflow
			}
			if err := frame.gas.Charge(block.Gas); err != nil {
				return frame.output, err
			}
			if e.m != nil {
				e.m.AddGas(block.Gas)
			}
		}

		op := e.jt[instr.Op]
		if op == nil {
			return frame.output, ErrInvalidOpcode
		}
		if op.writes && frame.IsStatic {
			return frame.output, ErrStaticContextViolation
		}

		var memSize uint64
		if op.memorySize != nil {
			raw, overflow := op.memorySize(frame)
			if overflow || raw > math.MaxUint64-31 {
				return frame.output, ErrGasUintOverflow
			}
			memSize = toWordSize(raw) * 32
		}

		var dynCost uint64
		if op.dynamicGas != nil {
			cost, err := op.dynamicGas(frame, memSize)
			if err != nil {
				return frame.output, err
			}
			if err := frame.gas.Charge(cost); err != nil {
				return frame.output, err
			}
			if e.m != nil {
				e.m.AddGas(cost)
			}
			dynCost = cost
		}

		if memSize > uint64(frame.Memory.Len()) {
			frame.Memory.Resize(memSize)
		}

		if tracer != nil {
			tracer.PreStep(StepInfo{
				PC:           instr.PC,
				Opcode:       instr.Op,
				Mnemonic:     instr.Op.String(),
				GasRemaining: frame.GasRemaining(),
				Depth:        frame.Depth,
				StackSize:    frame.Stack.Len(),
				MemorySize:   frame.Memory.Len(),
				Address:      frame.Address,
			})
		}

		out, err := op.execute(frame)

		if e.m != nil {
			e.m.IncOpcode(instr.Op.String())
		}

		if tracer != nil {
			stackCopy, stackTrunc := boundStack(frame.Stack.snapshot(), e.config.TracerConfig.MaxStackItems)
			memCopy, memTrunc := boundMemory(frame.Memory.GetPtr(0, uint64(frame.Memory.Len())), e.config.TracerConfig.MaxMemoryBytes)
			storageChanges, logsEmitted := frame.drainStep()
			tracer.PostStep(StepResult{
				GasCost:         opMetaTable[instr.Op].constantGas + dynCost,
				Stack:           stackCopy,
				StackTruncated:  stackTrunc,
				Memory:          memCopy,
				MemoryTruncated: memTrunc,
				StorageChanges:  storageChanges,
				LogsEmitted:     logsEmitted,
				Err:             err,
			})
		} else {
			frame.stepStorage, frame.stepLogs = nil, nil
		}

		if err != nil {
			if out != nil {
				frame.output = out
			}
			if tracer != nil {
				tracer.Finalize(finalResultFor(frame, err))
			}
			return frame.output, err
		}

		if op.halts {
			frame.output = out
			if tracer != nil {
				tracer.Finalize(finalResultFor(frame, nil))
			}
			return out, nil
		}

		if !op.jumps {
			frame.ip++
		}
	}

	if tracer != nil {
		tracer.Finalize(finalResultFor(frame, nil))
	}
	return frame.output, nil
}

// finalResultFor classifies a frame's termination for Tracer.Finalize
// (spec.md §4.C10).
func finalResultFor(frame *Frame, err error) FinalResult {
	switch {
	case err == nil:
		return FinalResult{ReturnData: frame.output, TerminalKind: TerminalSuccess}
	case err == ErrExecutionReverted:
		return FinalResult{ReturnData: frame.output, Failed: true, TerminalKind: TerminalRevert}
	default:
		return FinalResult{Failed: true, TerminalKind: TerminalHalt, Halt: haltReasonFor(err)}
	}
}
