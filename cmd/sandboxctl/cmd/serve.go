package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/inbound/device"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/inbound/httpapi"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/cel"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/script"
	"github.com/Sentinel-Gate/Sentinelgate/internal/config"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
	"github.com/Sentinel-Gate/Sentinelgate/internal/observability"
)

var serveDevMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control-surface HTTP server",
	Long: `Serve starts the sandbox policy engine's HTTP control surface: VERSION,
SETSPEC, and NLISTS, plus /health and /metrics.

Examples:
  # Start with config file settings
  sandboxctl serve

  # Start with a specific config file
  sandboxctl --config /path/to/sandboxd.yaml serve

  # Start in dev mode (permissive defaults, debug logging, no script required)
  sandboxctl serve --dev`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "Enable development mode (verbose logging, relaxed validation)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// ===== BOOT-01: load and validate config =====
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveDevMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// ===== BOOT-02: tracing and metrics =====
	tracer := observability.NoopTracer()
	var shutdownTracer observability.ShutdownFunc
	var shutdownMeter observability.ShutdownFunc
	if cfg.DevMode {
		tracer, shutdownTracer, err = observability.NewTracerProvider("sandboxctl")
		if err != nil {
			return fmt.Errorf("failed to start tracer provider: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	metrics.LivePolicyStacks.Set(0)
	if cfg.DevMode {
		meter, shutdown, err := observability.NewMeterProvider("sandboxctl")
		if err != nil {
			return fmt.Errorf("failed to start meter provider: %w", err)
		}
		if err := metrics.SetMeter(meter); err != nil {
			return fmt.Errorf("failed to build OTel instruments: %w", err)
		}
		shutdownMeter = shutdown
	}

	// ===== BOOT-03: script engine =====
	resolver := pathref.OSResolver{}
	var guards script.GuardCompiler
	if cfg.Policy.Guards {
		compiler, err := cel.NewCompiler()
		if err != nil {
			return fmt.Errorf("failed to build guard compiler: %w", err)
		}
		guards = compiler
	}
	engine := script.NewEngine(resolver, guards)

	// ===== BOOT-04: device and initial policy =====
	dev := device.NewDevice(engine, logger, tracer)
	dev.SetCounter(metrics)
	defer dev.Close()

	if cfg.Policy.ScriptPath != "" {
		body, err := os.ReadFile(cfg.Policy.ScriptPath)
		if err != nil {
			return fmt.Errorf("failed to read policy script: %w", err)
		}
		if err := dev.SetSpec(cmd.Context(), string(body), policy.Flags(0)); err != nil {
			return fmt.Errorf("failed to install initial policy: %w", err)
		}
		logger.Info("installed initial policy", "path", cfg.Policy.ScriptPath)
	}
	metrics.LivePolicyStacks.Set(float64(dev.NumLists()))

	// ===== BOOT-05: HTTP control surface =====
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := httpapi.NewServer(cfg.Server.HTTPAddr, dev, reg, logger)
	logger.Info("sandboxctl listening", "addr", cfg.Server.HTTPAddr)

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	if shutdownTracer != nil {
		_ = shutdownTracer(context.Background())
	}
	if shutdownMeter != nil {
		_ = shutdownMeter(context.Background())
	}
	logger.Info("sandboxctl stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
