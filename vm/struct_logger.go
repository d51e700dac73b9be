package vm

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/types"
)

// StructLog is one recorded step, the classic geth-style per-step struct
// log (spec.md §4.C10, SPEC_FULL.md §6 "grounded on the teacher's
// structured_logger.go").
type StructLog struct {
	PC       uint64
	Op       string
	Gas      uint64
	GasCost  uint64
	Depth    int
	Stack    []string
	Memory   []byte
	Storage  map[types.Hash]uint256.Int
	Logs     []types.Log
	Error    string
}

// StructLogTracer collects a full step-by-step trace for differential
// testing against other clients' debug_traceTransaction output. Unlike
// NoopTracer it allocates on every step, so it is meant for offline
// tracing, not the hot path.
type StructLogTracer struct {
	cfg    TracerConfig
	logs   []StructLog
	final  FinalResult
}

// NewStructLogTracer returns a StructLogTracer bounded by cfg.
func NewStructLogTracer(cfg TracerConfig) *StructLogTracer {
	return &StructLogTracer{cfg: cfg}
}

func (l *StructLogTracer) PreStep(info StepInfo) {
	l.logs = append(l.logs, StructLog{
		PC:    info.PC,
		Op:    info.Mnemonic,
		Gas:   info.GasRemaining,
		Depth: info.Depth,
	})
}

func (l *StructLogTracer) PostStep(result StepResult) {
	if len(l.logs) == 0 {
		return
	}
	entry := &l.logs[len(l.logs)-1]
	entry.GasCost = result.GasCost

	entry.Stack = make([]string, len(result.Stack))
	for i := range result.Stack {
		v := result.Stack[i]
		entry.Stack[i] = fmt.Sprintf("0x%x", v.Bytes())
	}

	if len(result.Memory) > 0 {
		entry.Memory = append([]byte(nil), result.Memory...)
	}

	if len(result.StorageChanges) > 0 {
		entry.Storage = make(map[types.Hash]uint256.Int, len(result.StorageChanges))
		for k, v := range result.StorageChanges {
			entry.Storage[k] = v
		}
	}
	if len(result.LogsEmitted) > 0 {
		entry.Logs = append([]types.Log(nil), result.LogsEmitted...)
	}

	if result.Err != nil {
		entry.Error = result.Err.Error()
	}
}

func (l *StructLogTracer) Finalize(result FinalResult) {
	l.final = result
}

// Logs returns every step captured since construction or the last Reset,
// from all frames of the traced execution in the order they ran.
func (l *StructLogTracer) Logs() []StructLog { return l.logs }

// Final returns the terminal result recorded by Finalize.
func (l *StructLogTracer) Final() FinalResult { return l.final }

// Reset clears captured state so the tracer can be reused across frames.
func (l *StructLogTracer) Reset() {
	l.logs = l.logs[:0]
	l.final = FinalResult{}
}

// FormatLogs renders logs as human-readable text, one line per step,
// following the teacher's FormatLogs layout.
func FormatLogs(logs []StructLog) string {
	var b strings.Builder
	for i, log := range logs {
		fmt.Fprintf(&b, "%-4d  %-14s  gas=%-8d cost=%-6d depth=%d",
			log.PC, log.Op, log.Gas, log.GasCost, log.Depth)

		if len(log.Stack) > 0 {
			b.WriteString("  stack=[")
			for j, v := range log.Stack {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteString(v)
			}
			b.WriteString("]")
		}
		if len(log.Memory) > 0 {
			fmt.Fprintf(&b, "  mem=%x", log.Memory)
		}
		if len(log.Storage) > 0 {
			fmt.Fprintf(&b, "  storage=%d", len(log.Storage))
		}
		if len(log.Logs) > 0 {
			fmt.Fprintf(&b, "  logs=%d", len(log.Logs))
		}
		if log.Error != "" {
			fmt.Fprintf(&b, "  err=%q", log.Error)
		}
		if i < len(logs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
