package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gigchain/config"
	"gigchain/core"
	"gigchain/core/genesis"
	"gigchain/crypto"
	"gigchain/observability"
	"gigchain/observability/logging"
	gigotel "gigchain/observability/otel"
	"gigchain/rpc"
	"gigchain/storage"
	"gigchain/storage/eventstore"
)

const (
	serviceName    = "gigd"
	genesisPathEnv = "GIG_GENESIS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides GIG_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service:    serviceName,
		Env:        cfg.Environment,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, *genesisFlag, logger); err != nil {
		logger.Error("gigd exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, genesisFlag string, logger *slog.Logger) error {
	headers := gigotel.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	for k, v := range cfg.Telemetry.Headers {
		headers[k] = v
	}
	shutdownTelemetry, err := gigotel.Init(ctx, gigotel.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,

		LedgerModules: core.Modules(),
		EscrowVault:   crypto.FormatAddress(core.EscrowVaultAddress),
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("open ledger database: %w", err)
	}
	defer db.Close()

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithMetrics(observability.Ledger()),
	}
	var index *eventstore.Store
	if strings.TrimSpace(cfg.EventIndexPath) != "" {
		index, err = eventstore.Open(cfg.EventIndexPath)
		if err != nil {
			return fmt.Errorf("open event index: %w", err)
		}
		defer index.Close()
		opts = append(opts, core.WithSink(index))
	}
	node, err := core.NewNode(db, opts...)
	if err != nil {
		return err
	}

	logger.Info("ledger opened", logging.MaskField("data_dir", cfg.LedgerPath()))

	if err := ensureGenesis(ctx, node, resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv), logger); err != nil {
		return err
	}
	if index != nil {
		if err := backfill(ctx, node, index); err != nil {
			return fmt.Errorf("backfill event index: %w", err)
		}
	}

	secret, err := cfg.JWTSecret()
	if err != nil {
		return err
	}
	server := rpc.NewServer(node, logger, rpc.ServerConfig{
		Auth: rpc.AuthConfig{
			Enabled:    cfg.RPC.AuthEnabled,
			HMACSecret: secret,
			Issuer:     cfg.RPC.JWTIssuer,
			Audience:   cfg.RPC.JWTAudience,
		},
		RateLimit:         rpc.RateLimit{RequestsPerMinute: cfg.RPC.RequestsPerMinute, Burst: cfg.RPC.Burst},
		TrustProxyHeaders: cfg.RPC.TrustProxyHeaders,
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeoutSecs) * time.Second,
	})
	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.RPCAddress, err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rpc shutdown: %w", err)
	}
	return <-serveErr
}

// resolveGenesisPath picks the genesis file: flag, then environment, then
// config.
func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(configValue)
}

// ensureGenesis applies the genesis file to an empty ledger. An initialised
// ledger ignores the file.
func ensureGenesis(ctx context.Context, node *core.Node, path string, logger *slog.Logger) error {
	initialised, err := node.Initialised(ctx)
	if err != nil {
		return err
	}
	if initialised {
		logger.Info("ledger already initialised")
		return nil
	}
	if path == "" {
		return errors.New("ledger is empty and no genesis file was provided")
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return err
	}
	if err := node.InitGenesis(ctx, spec); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied", slog.String("path", path))
	return nil
}

// backfill copies committed events the index has not seen yet.
func backfill(ctx context.Context, node *core.Node, index *eventstore.Store) error {
	last, err := index.LastSequence(ctx)
	if err != nil {
		return err
	}
	for {
		records, err := node.Events(ctx, last+1, 500)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := index.Publish(ctx, records); err != nil {
			return err
		}
		last = records[len(records)-1].Sequence
	}
}
