package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/internal/elog"
	"github.com/evmcore/evmcore/internal/vmmetrics"
	"github.com/evmcore/evmcore/types"
)

// EVM ties together a Host, a Config (hardfork/tracer/logging/metrics),
// and the shared analyzed-code cache. One EVM instance is reused across
// many top-level Execute calls within a chain session (spec.md §5).
type EVM struct {
	host   Host
	config Config
	rules  Rules
	cache  *Cache
	jt     *JumpTable
	log    *elog.Logger
	m      *vmmetrics.Metrics
}

// NewEVM constructs an engine bound to host with the given config.
func NewEVM(host Host, config Config) *EVM {
	cache := config.Cache
	if cache == nil {
		cache = NewCache()
	}
	rules := config.rules()
	return &EVM{
		host:   host,
		config: config,
		rules:  rules,
		cache:  cache,
		jt:     newJumpTable(rules),
		log:    config.logger().Module("vm"),
		m:      config.Metrics,
	}
}

// Host returns the bound host, primarily for call-frame-manager bridging.
func (e *EVM) Host() Host { return e.host }

// Rules returns the effective hardfork rules for this engine.
func (e *EVM) Rules() Rules { return e.rules }

// RequestKind mirrors CallKind one to one (spec.md §6.1). There is no
// separate Transaction kind: callers classify a top-level entry as a
// message call or a contract creation themselves.
type RequestKind int

const (
	ReqCall RequestKind = RequestKind(CallKindCall)
	ReqCallCode RequestKind = RequestKind(CallKindCallCode)
	ReqDelegateCall RequestKind = RequestKind(CallKindDelegateCall)
	ReqStaticCall RequestKind = RequestKind(CallKindStaticCall)
	ReqCreate RequestKind = RequestKind(CallKindCreate)
	ReqCreate2 RequestKind = RequestKind(CallKindCreate2)
)

// Request is the engine's single entry-point input (spec.md §6.1).
type Request struct {
	Kind     RequestKind
	Caller   types.Address
	Callee   types.Address // ignored for Create/Create2
	Value    uint256.Int
	Input    []byte
	GasLimit uint64
	Code     []byte // init code for Create*, runtime code otherwise
	IsStatic bool
	Salt     uint256.Int // Create2 only
}

// Status is the terminal classification of a Result.
type Status int

const (
	StatusSuccess Status = iota
	StatusRevert
	StatusHalt
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRevert:
		return "revert"
	case StatusHalt:
		return "halt"
	default:
		return "unknown"
	}
}

// Result is the engine's single entry-point output (spec.md §6.1).
type Result struct {
	Status        Status
	Halt          HaltReason
	GasUsed       uint64
	GasRefunded   uint64
	Output        []byte
	AddressCreated *types.Address
}

// Execute runs req as a top-level call (depth 0) and returns the final
// Result, with the refund already computed and capped (spec.md §6.1,
// §9 "gas_used always equals gas_limit - gas_remaining at the outermost
// frame").
func (e *EVM) Execute(req Request) Result {
	meter := NewGasMeter(req.GasLimit)

	var res callOutcome
	switch CallKind(req.Kind) {
	case CallKindCreate, CallKindCreate2:
		res = e.create(CallKind(req.Kind), createRequest{
			caller:   req.Caller,
			value:    req.Value,
			initCode: req.Code,
			gas:      meter,
			depth:    0,
			isStatic: req.IsStatic,
			salt:     req.Salt,
		})
	default:
		// A top-level CALL carries its own value transfer, same as a
		// value-bearing CALL opcode one frame up (spec.md §4.C9); the other
		// kinds never move a balance at their own address.
		res = e.call(CallKind(req.Kind), callRequest{
			caller:      req.Caller,
			address:     req.Callee,
			codeAddress: req.Callee,
			value:       req.Value,
			input:       req.Input,
			code:        req.Code,
			gas:         meter,
			depth:       0,
			isStatic:    req.IsStatic,
			transfer:    CallKind(req.Kind) == CallKindCall,
		})
	}

	gasUsed := req.GasLimit - meter.Remaining()
	refund := CappedRefund(gasUsed, e.rules.RefundQuotient(), meter.RefundCounter())
	if e.m != nil {
		e.m.ObserveGasUsed(gasUsed)
	}

	result := Result{
		GasUsed:     gasUsed,
		GasRefunded: refund,
		Output:      res.output,
	}
	switch {
	case res.halt != HaltNone:
		result.Status = StatusHalt
		result.Halt = res.halt
	case res.reverted:
		result.Status = StatusRevert
	default:
		result.Status = StatusSuccess
	}
	if res.created != nil {
		result.AddressCreated = res.created
	}
	return result
}
