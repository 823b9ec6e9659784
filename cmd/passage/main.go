// Package main is the entrypoint for the passage forwarding proxy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/passage-proxy/passage/internal/config"
	"github.com/passage-proxy/passage/internal/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// startable is the server surface the CLI drives — satisfied by
// *server.Server.
type startable interface {
	EnableHotReload(configPath string)
	Start(ctx context.Context) error
}

// serverFactory creates a startable server from config. Tests can inject a
// failing factory to cover the server.New() error path.
type serverFactory func(*config.Config, string) (startable, error)

// defaultServerFactory is the production factory that delegates to server.New.
func defaultServerFactory(cfg *config.Config, version string) (startable, error) {
	return server.New(cfg, version)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Global flags. An empty config path means environment-only operation:
	// TARGET_URL and friends configure the proxy, defaults cover the rest.
	fs := flag.NewFlagSet("passage", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration file (default: environment only)")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printUsage()
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *showVersion {
		fmt.Printf("passage %s\n", Version)
		return 0
	}

	// Bootstrap logging; the server rebuilds its logger from config.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Determine subcommand
	subcmd := "serve"
	remaining := fs.Args()
	if len(remaining) > 0 {
		subcmd = remaining[0]
		remaining = remaining[1:]
	}

	switch subcmd {
	case "serve":
		return cmdServe(*configPath, defaultServerFactory)
	case "validate":
		return cmdValidate(*configPath)
	case "init":
		return cmdInit(remaining)
	case "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subcmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `passage %s — single-upstream forwarding proxy

Usage:
  passage [flags] <command>

Commands:
  serve      Start the proxy server (default)
  validate   Validate the effective configuration
  init       Generate a starter passage.yaml
  help       Show this help message

Flags:
  --config string   Path to configuration file (default: environment only)
  --version         Print version and exit

Examples:
  TARGET_URL=http://localhost:9000 passage
  passage serve --config passage.yaml
  passage validate --config passage.yaml
  passage init --profile prod
`, Version)
}

// cmdServe starts the proxy HTTP server with graceful shutdown.
func cmdServe(configPath string, newServer serverFactory) int {
	logger := slog.Default()

	source := configPath
	if source == "" {
		source = "(environment only)"
	}
	logger.Info("starting passage",
		"version", Version,
		"config", source,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("configuration error", "error", err)
		return 1
	}

	srv, err := newServer(cfg, Version)
	if err != nil {
		logger.Error("server initialization error", "error", err)
		return 1
	}

	// Hot reload needs a file to watch; environment-only deployments
	// restart to pick up changes.
	if configPath != "" && cfg.Reload.Enabled {
		srv.EnableHotReload(configPath)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}

	return 0
}

// cmdValidate loads the effective configuration and reports on the target.
// A missing target is a warning, not an error: the proxy is routinely
// deployed before TARGET_URL is set. A malformed target is never right,
// so it fails validation.
func cmdValidate(configPath string) int {
	logger := slog.Default()
	source := configPath
	if source == "" {
		source = "(environment only)"
	}
	logger.Info("validating configuration", "config", source)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	tgt, err := cfg.ResolveTarget()
	switch {
	case errors.Is(err, config.ErrTargetMissing):
		fmt.Println("config valid (no target configured; requests answer 500 until TARGET_URL is set)")
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	default:
		fmt.Printf("config valid (target %s)\n", tgt.Origin)
	}
	return 0
}

// cmdInit generates a new passage.yaml with the specified profile.
func cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	profile := fs.String("profile", "dev", "configuration profile (dev or prod)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	switch *profile {
	case "dev", "prod":
		// valid
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown profile %q (use dev or prod)\n", *profile)
		return 1
	}

	profileYAML := generateProfileYAML(*profile)

	outPath := "passage.yaml"
	if err := os.WriteFile(outPath, []byte(profileYAML), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outPath, err)
		return 1
	}

	fmt.Printf("Generated %s with profile %q\n", outPath, *profile)
	return 0
}

// generateProfileYAML returns a YAML configuration string for the given profile.
func generateProfileYAML(profile string) string {
	switch profile {
	case "prod":
		return config.ProdProfile()
	default:
		return config.DevProfile()
	}
}
