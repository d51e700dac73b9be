package vm

import (
	"github.com/evmcore/evmcore/internal/elog"
	"github.com/evmcore/evmcore/internal/vmmetrics"
)

// Config bundles the construction-time knobs of an EVM instance (spec.md
// §8 "6.3 Hardfork selection" plus the ambient logging/metrics stack of
// SPEC_FULL.md §3). It is a plain struct, not a file/flag loader, matching
// the teacher's own `cmd/eth2030/flags.go` preference for explicit
// struct-based configuration.
type Config struct {
	Hardfork Hardfork

	// Tracer is consulted at every step boundary if non-nil. Leave nil for
	// zero tracing overhead.
	Tracer Tracer
	TracerConfig TracerConfig

	// Logger receives module-tagged structured diagnostics. Defaults to
	// elog.Default() if nil.
	Logger *elog.Logger

	// Metrics receives step/gas/call counters. Nil is valid and every
	// vmmetrics.Metrics method on a nil receiver is a no-op.
	Metrics *vmmetrics.Metrics

	// Cache is the shared analyzed-code cache (spec.md §3.6). A fresh
	// engine-local Cache is created if nil.
	Cache *Cache

	// ExtraEips lets a caller flip on individual EIP flags beyond what the
	// named Hardfork implies, for differential testing -- mirrors
	// go-ethereum's vm.Config.ExtraEips (SPEC_FULL.md §8).
	ExtraEips []int

	// DepthLimit overrides the protocol's 1024 call-depth cap; 0 means use
	// the protocol default. Exists purely for fuzzing/testing smaller
	// limits quickly.
	DepthLimit int
}

// rules derives the effective Rules for this config, applying any
// ExtraEips overrides after the base hardfork derivation.
func (c Config) rules() Rules {
	r := RulesFor(c.Hardfork)
	for _, eip := range c.ExtraEips {
		switch eip {
		case 1153:
			r.EIP1153 = true
		case 5656:
			r.EIP5656 = true
		case 3529:
			r.EIP3529 = true
		case 3541:
			r.EIP3541 = true
		case 3860:
			r.EIP3860 = true
		case 2929:
			r.EIP2929 = true
		case 6780:
			r.EIP6780 = true
		}
	}
	return r
}

func (c Config) depthLimit() int {
	if c.DepthLimit > 0 {
		return c.DepthLimit
	}
	return 1024
}

func (c Config) logger() *elog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return elog.Default()
}
