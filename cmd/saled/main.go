// Command saled runs the allocation sale daemon.
//
// Usage:
//
//	saled [flags]
//
// Every flag defaults to its SALE_* environment variable, e.g.
// SALE_RPC_ADDR for --rpc.addr. Flags:
//
//	--datadir           Data directory (default: sale-data)
//	--db                Store driver: memory, sqlite (default: sqlite)
//	--rpc.addr          JSON-RPC listen address (default: 127.0.0.1:8545)
//	--metrics.addr      Prometheus listen address, empty disables
//	--log.level         debug, info, warn, error (default: info)
//	--log.format        text, json (default: text)
//	--codec             plain, hex, bech32:<hrp> (default: plain)
//	--sign              Require signed state-changing calls
//	--version           Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thorstarter/thorstarter-terra/log"
	"github.com/Thorstarter/thorstarter-terra/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code.
func run(args []string) int {
	env, err := node.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, exit, code := parseFlags(args, env, os.Stdout, os.Stderr)
	if exit {
		return code
	}

	// Validate configuration before doing any work.
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}
	logger, err := log.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.SetDefault(logger)

	logger.Info("saled starting",
		"version", version,
		"datadir", cfg.DataDir,
		"db", cfg.DB,
		"rpc", cfg.RPCAddr,
		"metrics", cfg.MetricsAddr,
		"denom", cfg.Denom,
		"codec", cfg.AddressCodec,
		"sale", cfg.SaleAddress,
		"tax_rate", cfg.TaxRate,
		"signed", cfg.RequireSignatures,
	)

	n, err := node.New(&cfg, logger)
	if err != nil {
		logger.Error("failed to create node", "err", err)
		return 1
	}
	if err := n.Start(); err != nil {
		logger.Error("failed to start node", "err", err)
		n.Stop()
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("received shutdown signal")

	if err := n.Stop(); err != nil {
		logger.Error("error during shutdown", "err", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

// parseFlags applies args on top of base. It returns the config, whether
// the caller should exit immediately, and the exit code.
func parseFlags(args []string, base node.Config, stdout, stderr io.Writer) (node.Config, bool, int) {
	cfg := base
	fs := newFlagSet(&cfg)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cfg, true, 0
		}
		return cfg, true, 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments %v\n", fs.Args())
		return cfg, true, 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "saled %s (commit %s)\n", version, commit)
		return cfg, true, 0
	}
	return cfg, false, 0
}

// newFlagSet binds every flag to cfg. The FlagSet uses ContinueOnError so
// callers control the error handling behavior.
func newFlagSet(cfg *node.Config) *flag.FlagSet {
	fs := flag.NewFlagSet("saled", flag.ContinueOnError)
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "data directory path")
	fs.StringVar(&cfg.DB, "db", cfg.DB, "store driver (memory, sqlite)")
	fs.StringVar(&cfg.RPCAddr, "rpc.addr", cfg.RPCAddr, "JSON-RPC listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics.addr", cfg.MetricsAddr, "Prometheus listen address, empty disables")
	fs.StringVar(&cfg.LogLevel, "log.level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log.format", cfg.LogFormat, "log format (text, json)")
	fs.StringVar(&cfg.Denom, "denom", cfg.Denom, "native contribution denom")
	fs.StringVar(&cfg.AddressCodec, "codec", cfg.AddressCodec, "address codec (plain, hex, bech32:<hrp>)")
	fs.StringVar(&cfg.SaleAddress, "sale", cfg.SaleAddress, "the sale's own account")
	fs.StringVar(&cfg.Owner, "owner", cfg.Owner, "owner to instantiate a fresh sale for")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "sale token")
	fs.StringVar(&cfg.TokenReserve, "token.reserve", cfg.TokenReserve, "tokens minted to the sale on first start")
	fs.StringVar(&cfg.TaxRate, "tax.rate", cfg.TaxRate, "tax rate as a decimal fraction")
	fs.StringVar(&cfg.TaxCap, "tax.cap", cfg.TaxCap, "tax cap per transfer")
	fs.StringVar(&cfg.TaxCollector, "tax.collector", cfg.TaxCollector, "account receiving tax, empty burns it")
	fs.StringVar(&cfg.FcfsCap, "fcfs.cap", cfg.FcfsCap, "per-call cap of first-come-first-served deposits")
	fs.BoolVar(&cfg.ReserveGuard, "reserve.guard", cfg.ReserveGuard, "keep owed funds out of owner sweeps")
	fs.BoolVar(&cfg.RequireSignatures, "sign", cfg.RequireSignatures, "require signed state-changing calls")
	return fs
}
