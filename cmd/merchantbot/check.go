package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"merchantbot/internal/config"
	"merchantbot/internal/directory"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run diagnostic checks on the installation",
		Long: `Verifies that the configuration, token directory, state database and
webhook port are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("merchantbot check v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'merchantbot init' to create a default configuration.\n")
				return fmt.Errorf("1 check(s) failed")
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}

			// 3. Telegram token present
			if cfg.Telegram.Token == "" {
				printFail("Telegram token", "telegram.token is empty")
				failed++
			} else {
				printPass("Telegram token", "configured")
				passed++
			}

			// 4. Webhook secret present
			if cfg.Webhook.Secret == "" {
				printWarn("Webhook secret", "webhook.secret is empty; all pushes will be rejected")
				warned++
			} else {
				printPass("Webhook secret", "configured")
				passed++
			}

			// 5. Token directory loads
			dir, err := directory.LoadFile(cfg.Directory.TokensFile)
			if err != nil {
				printFail("Token directory", err.Error())
				failed++
			} else if dir.Identities() == 0 {
				printWarn("Token directory", "no identities enrolled; nobody can use the bot")
				warned++
			} else {
				printPass("Token directory", fmt.Sprintf("%d credential(s), %d identit(ies)", dir.Credentials(), dir.Identities()))
				passed++
			}

			// 6. State database writable (only when persistence is on)
			if cfg.State.DBPath != "" {
				if err := checkDatabase(cfg.State.DBPath); err != nil {
					printFail("State database", err.Error())
					failed++
				} else {
					printPass("State database", cfg.State.DBPath)
					passed++
				}
			}

			// 7. Webhook port available
			if err := checkPort(cfg.Webhook.Port); err != nil {
				printWarn("Webhook port", fmt.Sprintf("port %d may be in use: %v", cfg.Webhook.Port, err))
				warned++
			} else {
				printPass("Webhook port", fmt.Sprintf(":%d available", cfg.Webhook.Port))
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running merchantbot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nmerchantbot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _check_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _check_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
