// Package main is the entry point for the transaction gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	cfg, err := loadAndValidateConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(flags, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting txgw",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.String("auth_url", cfg.Spec.Services.Auth.URL),
		observability.String("transactions_url", cfg.Spec.Services.Transactions.URL),
		observability.String("cache", cacheDescription(cfg.Spec.Cache)),
	)

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", observability.Error(err))
		_ = logger.Sync()
		os.Exit(1) //nolint:gocritic // logger already synced
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runGateway(ctx, app); err != nil {
		logger.Error("gateway exited with error", observability.Error(err))
		_ = logger.Sync()
		os.Exit(1) //nolint:gocritic // logger already synced
	}
}

// parseFlags parses command line flags. Environment variables supply the
// defaults.
func parseFlags(args []string) (cliFlags, error) {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)

	var f cliFlags
	fs.StringVar(&f.configPath, "config", getEnvOrDefault("GATEWAY_CONFIG_PATH", ""),
		"Path to configuration file (defaults apply when empty)")
	fs.StringVar(&f.logLevel, "log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error); overrides the config file")
	fs.StringVar(&f.logFormat, "log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", ""),
		"Log format (json, console); overrides the config file")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return f, nil
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "txgw version %s\n", version)
	_, _ = fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	_, _ = fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// loadAndValidateConfig loads and validates the configuration. An empty
// path yields the defaults.
func loadAndValidateConfig(configPath string) (*config.GatewayConfig, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger. Flags win over the config file.
func initLogger(flags cliFlags, cfg *config.GatewayConfig) (observability.Logger, error) {
	logCfg := observability.DefaultLogConfig()
	if o := cfg.Spec.Observability; o != nil && o.Logging != nil {
		logCfg.Level = o.Logging.Level
		logCfg.Format = o.Logging.Format
	}
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}
	return observability.NewLogger(logCfg)
}

func cacheDescription(c *config.CacheConfig) string {
	if c == nil || !c.Enabled {
		return "disabled"
	}
	return c.Type
}
