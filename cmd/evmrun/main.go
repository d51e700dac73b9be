// Command evmrun drives the engine over a hex-encoded bytecode file for
// manual experimentation (SPEC_FULL.md §3 "Configuration"), in the
// teacher's stdlib-flag idiom rather than a third-party CLI framework.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/internal/elog"
	"github.com/evmcore/evmcore/types"
	"github.com/evmcore/evmcore/vm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("evmrun", flag.ContinueOnError)

	codePath := fs.String("code", "", "Path to a file containing hex-encoded bytecode (required)")
	inputHex := fs.String("input", "", "Hex-encoded calldata")
	gasLimit := fs.Uint64("gas", 10_000_000, "Gas limit for the top-level call")
	hardfork := fs.String("hardfork", "Cancun", "Hardfork to evaluate against")
	create := fs.Bool("create", false, "Treat -code as init code and run CREATE instead of CALL")
	trace := fs.Bool("trace", false, "Print a per-step structured trace to stdout")
	verbosity := fs.String("loglevel", "info", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *codePath == "" {
		fmt.Fprintln(os.Stderr, "evmrun: -code is required")
		return 2
	}

	elog.SetDefault(elog.New(parseLevel(*verbosity), os.Stderr))

	code, err := readHexFile(*codePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evmrun: %v\n", err)
		return 1
	}
	input, err := hex.DecodeString(strings.TrimPrefix(*inputHex, "0x"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "evmrun: invalid -input: %v\n", err)
		return 1
	}

	fork, err := vm.ParseHardfork(*hardfork)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evmrun: %v\n", err)
		return 1
	}

	var tracer *vm.StructLogTracer
	cfg := vm.Config{Hardfork: fork}
	if *trace {
		tracer = vm.NewStructLogTracer(vm.DefaultTracerConfig())
		cfg.Tracer = tracer
	}

	host := newCLIHost()
	engine := vm.NewEVM(host, cfg)

	caller := types.BytesToAddress([]byte{0x01})
	callee := types.BytesToAddress([]byte{0x02})
	host.setBalance(caller, new(uint256.Int).SetAllOne())

	req := vm.Request{
		Caller:   caller,
		Callee:   callee,
		Input:    input,
		GasLimit: *gasLimit,
		Code:     code,
	}
	if *create {
		req.Kind = vm.ReqCreate
	} else {
		req.Kind = vm.ReqCall
		host.setCode(callee, code)
	}

	result := engine.Execute(req)

	if tracer != nil {
		fmt.Println(vm.FormatLogs(tracer.Logs()))
		fmt.Println()
	}

	fmt.Printf("status:       %s\n", result.Status)
	if result.Status == vm.StatusHalt {
		fmt.Printf("halt reason:  %s\n", result.Halt)
	}
	fmt.Printf("gas used:     %d\n", result.GasUsed)
	fmt.Printf("gas refunded: %d\n", result.GasRefunded)
	fmt.Printf("output:       0x%x\n", result.Output)
	if result.AddressCreated != nil {
		fmt.Printf("created:      %s\n", result.AddressCreated)
	}

	if result.Status != vm.StatusSuccess {
		return 1
	}
	return 0
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func readHexFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	clean := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	code, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return code, nil
}
