package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/teilomillet/gproxy/config"
	"github.com/teilomillet/gproxy/errors"
	"github.com/teilomillet/gproxy/server"
	"go.uber.org/zap"
)

const Version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gproxy: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, loads configuration and serves until ctx is cancelled.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("gproxy", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configFile := fs.String("config", "", "Path to configuration file (defaults apply when empty)")
	envFile := fs.String("env-file", ".env", "Dotenv file loaded before the API key is read")
	validateOnly := fs.Bool("validate", false, "Validate configuration and exit")
	version := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *version {
		fmt.Fprintf(stdout, "gproxy %s\n", Version)
		return nil
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid default config: %w", err)
	}

	if *validateOnly {
		fmt.Fprintln(stdout, "Configuration is valid")
		return nil
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	errors.SetLogger(logger)

	credential := config.LoadCredential(cfg.Gemini.APIKeyEnv)

	srv, err := server.NewServerWithConfig(ctx, cfg, credential, logger)
	if err != nil {
		logger.Error("Server initialization failed",
			zap.Error(err),
			zap.String("config_path", *configFile),
		)
		return err
	}

	logger.Info("Starting gproxy",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("proxy_path", cfg.Server.ProxyPath),
		zap.String("transport", cfg.Gemini.Transport),
		zap.String("model", cfg.Gemini.Model),
		zap.Stringer("api_key", credential),
	)

	if err := srv.Start(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}

	logger.Info("Server stopped")
	return nil
}
