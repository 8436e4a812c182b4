// Command blockproof-produce assembles a block prestate proof artifact
// for one historical block and writes the Snappy-compressed, SSZ-style
// container to disk.
//
// Usage:
//
//	blockproof-produce [flags]
//
// Flags:
//
//	--rpc        Archive node JSON-RPC endpoint (required)
//	--block      Block number to prove (required)
//	--out        Output artifact path (default: block-<N>.blockproof)
//	--timeout    Per-call RPC timeout, in seconds (default: 30)
//	--verbosity  Log level 0-5 (default: 3)
//	--version    Print version and exit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/eth2030/blockproof/artifact"
	"github.com/eth2030/blockproof/assembler"
	"github.com/eth2030/blockproof/log"
	"github.com/eth2030/blockproof/rpcsource"
)

var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

type config struct {
	RPCEndpoint string
	Block       uint64
	OutPath     string
	TimeoutSecs int
	Verbosity   int
}

func defaultConfig() config {
	return config{
		TimeoutSecs: 30,
		Verbosity:   3,
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	logger := log.New(verbosityToLevel(cfg.Verbosity)).Component("produce")
	log.SetDefault(logger)

	if cfg.RPCEndpoint == "" {
		logger.Error("missing required flag", "flag", "rpc")
		return 2
	}
	if cfg.Block == 0 {
		logger.Error("missing required flag", "flag", "block")
		return 2
	}
	if cfg.OutPath == "" {
		cfg.OutPath = fmt.Sprintf("block-%d.blockproof", cfg.Block)
	}

	logger.Info("assembling block prestate proof",
		"rpc", cfg.RPCEndpoint, "block", cfg.Block, "out", cfg.OutPath)

	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}
	source := rpcsource.NewClient(cfg.RPCEndpoint, httpClient)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSecs)*10*time.Second)
	defer cancel()

	result, err := assembler.Assemble(ctx, source, cfg.Block)
	if err != nil {
		logger.Error("assembly failed", "err", err)
		return 1
	}
	logSummary(logger, result)

	encoded, err := artifact.Encode(result)
	if err != nil {
		logger.Error("encoding failed", "err", err)
		return 1
	}

	if err := os.WriteFile(cfg.OutPath, encoded, 0o644); err != nil {
		logger.Error("failed to write artifact", "path", cfg.OutPath, "err", err)
		return 1
	}

	logger.Info("wrote artifact", "path", cfg.OutPath, "bytes", len(encoded))
	return 0
}

func logSummary(logger *log.Logger, result *assembler.Result) {
	logger.Info("assembled artifact",
		"accounts", len(result.AccountProofs),
		"contracts", len(result.Contracts),
		"account_nodes", len(result.AccountNodes),
		"storage_nodes", len(result.StorageNodes),
		"block_hashes", len(result.BlockHashes),
	)
}

func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelError + 4
	case v == 1:
		return slog.LevelError
	case v == 2:
		return slog.LevelWarn
	case v == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func parseFlags(args []string) (config, bool, int) {
	cfg := defaultConfig()
	fs := newFlagSet(&cfg)
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, true, 2
	}
	if *showVersion {
		fmt.Printf("blockproof-produce %s (commit %s)\n", version, commit)
		return cfg, true, 0
	}
	return cfg, false, 0
}

func newFlagSet(cfg *config) *flagSet {
	fs := newCustomFlagSet("blockproof-produce")
	fs.StringVar(&cfg.RPCEndpoint, "rpc", cfg.RPCEndpoint, "archive node JSON-RPC endpoint")
	fs.Uint64Var(&cfg.Block, "block", cfg.Block, "block number to prove")
	fs.StringVar(&cfg.OutPath, "out", cfg.OutPath, "output artifact path")
	fs.IntVar(&cfg.TimeoutSecs, "timeout", cfg.TimeoutSecs, "per-call RPC timeout, in seconds")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0=silent, 4-5=debug)")
	return fs
}
