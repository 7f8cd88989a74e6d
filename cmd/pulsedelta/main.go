// Command pulsedelta is the backend entry point for the PulseDelta prediction
// market API. It loads configuration, validates it, sets up signal handling,
// and starts the application in the configured mode.
//
// Two helper subcommands skip the server entirely:
//
//	pulsedelta encrypt-key -out oracle.json   (reads ORACLE_PRIVATE_KEY and KEY_PASSWORD)
//	pulsedelta issue-token -address 0x...      (prints a wallet bearer token)
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

	"github.com/pulsedelta/backend/internal/app"
	"github.com/pulsedelta/backend/internal/auth"
	"github.com/pulsedelta/backend/internal/config"
	"github.com/pulsedelta/backend/internal/logging"
	"github.com/pulsedelta/backend/internal/wallet"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "encrypt-key":
			exitOn(encryptKey(os.Args[2:]))
			return
		case "issue-token":
			exitOn(issueToken(os.Args[2:]))
			return
		}
	}

	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override the configured mode (server, demo, migrate, archive)")
	flag.Parse()

	// Bootstrap logger until the configured level is known.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	logger, logCloser, err := logging.New(cfg.LogLevel, cfg.Logging.FilePath)
	if err != nil {
		slog.Error("failed to set up logging", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("pulsedelta backend starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error",
			slog.String("error", err.Error()),
		)
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		application.Close()
		os.Exit(1)
	}

	logger.Info("pulsedelta backend stopped")
}

// encryptKey writes an encrypted oracle key file.
func encryptKey(args []string) error {
	fs := flag.NewFlagSet("encrypt-key", flag.ExitOnError)
	out := fs.String("out", "oracle-key.json", "output key file")
	keyEnv := fs.String("key-env", "ORACLE_PRIVATE_KEY", "environment variable holding the private key")
	passEnv := fs.String("password-env", "KEY_PASSWORD", "environment variable holding the password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := wallet.EncryptKey(os.Getenv(*keyEnv), os.Getenv(*passEnv))
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Printf("encrypted key written to %s\n", *out)
	return nil
}

// issueToken prints a wallet token signed with the configured JWT secret.
func issueToken(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to configuration file")
	address := fs.String("address", "", "wallet address to issue the token for")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiresIn.Duration)
	token, err := tokens.Issue(*address)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
