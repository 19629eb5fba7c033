package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vitwit/disburse"
	"github.com/vitwit/disburse/clients"
	"github.com/vitwit/disburse/logger"
	"github.com/vitwit/disburse/metrics"
	"github.com/vitwit/disburse/report"
	"github.com/vitwit/disburse/types"
	"github.com/vitwit/disburse/utils"
)

const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

type cliOptions struct {
	entriesPath string
	keyPath     string
	configPath  string
	rpcURL      string
	contract    string
	testnet     bool
	logLevel    string
	pushgateway string
	dryRun      bool
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions

	fs := flag.NewFlagSet("disburse", flag.ContinueOnError)
	fs.SetOutput(stderr)

	entries := getenv("DISBURSE_ENTRIES", "")
	fs.StringVar(&opts.entriesPath, "entries", entries, "Path to the entries file with lines: address,amount")
	fs.StringVar(&opts.entriesPath, "p", entries, "Shorthand for -entries")

	key := getenv("DISBURSE_KEY", "")
	fs.StringVar(&opts.keyPath, "key", key, "Path to the funding account private key (hex)")
	fs.StringVar(&opts.keyPath, "K", key, "Shorthand for -key")

	rpc := getenv("DISBURSE_RPC_URL", "")
	fs.StringVar(&opts.rpcURL, "rpc", rpc, "RPC endpoint URL, overrides the network default")
	fs.StringVar(&opts.rpcURL, "a", rpc, "Shorthand for -rpc")

	contract := getenv("DISBURSE_CONTRACT", "")
	fs.StringVar(&opts.contract, "contract", contract, "Token contract address, overrides the network default")
	fs.StringVar(&opts.contract, "c", contract, "Shorthand for -contract")

	fs.BoolVar(&opts.testnet, "testnet", false, "Use the BSC testnet defaults")
	fs.StringVar(&opts.configPath, "config", getenv("DISBURSE_CONFIG", ""), "Optional JSON config file")
	fs.StringVar(&opts.logLevel, "log-level", getenv("DISBURSE_LOG_LEVEL", ""), "Log level: debug, info, warn, error")
	fs.StringVar(&opts.pushgateway, "pushgateway", getenv("DISBURSE_PUSHGATEWAY", ""), "Prometheus Pushgateway URL")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Parse the entries and print the plan without touching the chain")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.entriesPath == "" {
		return opts, errors.New("missing -entries (or DISBURSE_ENTRIES)")
	}
	if opts.keyPath == "" {
		return opts, errors.New("missing -key (or DISBURSE_KEY)")
	}
	return opts, nil
}

// buildConfig layers flags over the optional config file, then fills defaults.
func buildConfig(opts cliOptions) (types.Config, error) {
	var cfg types.Config
	if opts.configPath != "" {
		data, err := os.ReadFile(opts.configPath)
		if err != nil {
			return cfg, &types.DisburseError{
				Code:    types.ErrConfigError,
				Message: "failed to read config",
				Err:     err,
			}
		}
		if cfg, err = utils.DecodeConfig(data); err != nil {
			return cfg, err
		}
	}

	if opts.testnet {
		cfg.Network = types.NetworkBSCTestnet
	}
	if opts.rpcURL != "" {
		cfg.RPCUrl = opts.rpcURL
	}
	if opts.contract != "" {
		cfg.Contract = opts.contract
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.pushgateway != "" {
		cfg.Pushgateway = opts.pushgateway
	}

	cfg = cfg.WithDefaults()
	if err := utils.ValidateConfig(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	log, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer func() { _ = log.Sync() }()

	entries, err := utils.LoadEntries(opts.entriesPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	signer, err := clients.LoadSigner(opts.keyPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if opts.dryRun {
		printPlan(stdout, cfg, signer, disburse.NewPlan(entries))
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewPrometheusRecorder(cfg.Network.String())
	defer pushMetrics(cfg, recorder, log)

	client, err := clients.NewEVMClient(ctx, cfg.Network, cfg.RPCUrl, cfg.Contract,
		clients.WithCallTimeout(cfg.RPCTimeout.Std()),
		clients.WithRateLimit(cfg.RPCRateLimit),
		clients.WithRecorder(recorder),
		clients.WithClientLogger(log),
	)
	if err != nil {
		log.Error("connect failed", map[string]any{"error": err})
		fmt.Fprintln(stderr, err)
		return exitRun
	}
	defer client.Close()

	decimals, err := client.Decimals(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitRun
	}
	if decimals != types.Decimals {
		fmt.Fprintf(stderr, "token %s has %d decimals, expected %d\n", cfg.Contract, decimals, types.Decimals)
		return exitUsage
	}

	d := disburse.New(client, signer, cfg,
		disburse.WithLogger(log),
		disburse.WithMetrics(recorder),
		disburse.WithReporter(report.NewWriterReporter(stdout, os.Getenv("NO_COLOR") == "")),
	)

	result, err := d.Run(ctx, entries)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitRun
	}

	fmt.Fprintf(stdout, "Done. run %s, %d transfers, all settled\n", result.RunID, result.Submitted())
	return exitOK
}

func printPlan(w io.Writer, cfg types.Config, signer *clients.Signer, plan disburse.Plan) {
	fmt.Fprintf(w, "Network: %s\n", cfg.Network)
	fmt.Fprintf(w, "RPC: %s\n", cfg.RPCUrl)
	fmt.Fprintf(w, "Contract: %s\n", strings.ToLower(cfg.Contract))
	fmt.Fprintf(w, "Sending from: %s\n", types.FormatAddress(signer.Address()))
	fmt.Fprintf(w, "Entries: %d, chunks: %d, recipients: %d\n", plan.Entries, plan.Chunks, plan.Recipients)
	fmt.Fprintf(w, "Total: %s, largest chunk requirement: %s\n",
		utils.FormatAmount(plan.Total), utils.FormatAmount(plan.Required))
}

func pushMetrics(cfg types.Config, recorder *metrics.PrometheusRecorder, log logger.Logger) {
	if cfg.Pushgateway == "" {
		return
	}
	if err := recorder.Push(cfg.Pushgateway, "disburse"); err != nil {
		log.Warn("metrics push failed", map[string]any{
			"pushgateway": cfg.Pushgateway,
			"error":       err,
		})
	}
}
