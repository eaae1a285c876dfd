package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"merchantbot/internal/bus"
	"merchantbot/internal/channel"
	"merchantbot/internal/config"
	"merchantbot/internal/directory"
	"merchantbot/internal/merchant"
	"merchantbot/internal/router"
	"merchantbot/internal/state"
	"merchantbot/internal/webhook"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "merchantbot",
		Short: "Telegram front-end for the merchant payments API",
		Long:  "merchantbot lets enrolled operators check balances, browse payments and submit withdrawals from Telegram, and relays deposit push notifications.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.merchantbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(checkCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.DefaultConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot and the notification webhook",
		RunE:  run,
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func run(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = buildLogger(cfg.General)

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is not set")
	}

	dir, err := directory.LoadFile(cfg.Directory.TokensFile)
	if err != nil {
		return fmt.Errorf("load token directory: %w", err)
	}
	logger.Info("token directory loaded",
		"file", cfg.Directory.TokensFile,
		"credentials", dir.Credentials(),
		"identities", dir.Identities(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	defer messageBus.Close()

	var states state.Store
	if cfg.State.DBPath != "" {
		sqliteStates, err := state.NewSQLiteStore(cfg.State.DBPath, logger)
		if err != nil {
			return fmt.Errorf("state store: %w", err)
		}
		defer sqliteStates.Close()
		states = sqliteStates
		logger.Info("persistent state store enabled", "path", cfg.State.DBPath)
	} else {
		states = state.NewMemoryStore()
	}

	api := merchant.New(merchant.Config{
		BaseURL:            cfg.Merchant.APIBase,
		Timeout:            time.Duration(cfg.Merchant.TimeoutSeconds) * time.Second,
		InsecureSkipVerify: cfg.Merchant.InsecureSkipVerify,
	}, logger)

	telegramCh := channel.NewTelegram(channel.TelegramConfig{
		Token:     cfg.Telegram.Token,
		ParseMode: cfg.Telegram.ParseMode,
		Logger:    logger,
	})

	dispatch := router.New(router.Config{
		API:         api,
		Messenger:   telegramCh,
		Directory:   dir,
		States:      states,
		Logger:      logger,
		InfoTimeout: time.Duration(cfg.Merchant.InfoTimeoutSeconds) * time.Second,
	})

	// Event dispatch loop. Each update is handled on its own goroutine so a
	// slow merchant API call never blocks polling; the semaphore caps
	// concurrency at general.maxConcurrentUpdates.
	sem := make(chan struct{}, cfg.General.MaxConcurrentUpdates)
	go func() {
		for ev := range messageBus.Subscribe() {
			ev := ev
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				dispatch.Handle(ctx, ev)
			}()
		}
	}()

	hook := webhook.New(webhook.Config{
		Host:          cfg.Webhook.Host,
		Port:          cfg.Webhook.Port,
		Path:          cfg.Webhook.Path,
		Secret:        cfg.Webhook.Secret,
		ServeMetrics:  cfg.Metrics.Enabled,
		MetricsPath:   cfg.Metrics.Endpoint,
		Directory:     dir,
		Bus:           messageBus,
		NotifyChannel: telegramCh.Name(),
		Logger:        logger,
	})
	go func() {
		if err := hook.Start(ctx); err != nil {
			logger.Error("webhook server error", "err", err)
			stop()
		}
	}()

	logger.Info("merchantbot started", "version", version)
	return telegramCh.Start(ctx, messageBus)
}

// buildLogger applies general.logLevel and general.logFile.
func buildLogger(cfg config.GeneralConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.LogFile, "err", err)
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}
