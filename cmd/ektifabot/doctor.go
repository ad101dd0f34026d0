package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"ektifabot/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your ektifabot installation",
		Long: `Verifies that the configuration, transcript database, webhook port,
and external endpoints are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("ektifabot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'ektifabot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Transcript database writable
			if err := checkDatabase(cfg.Transcript.DBPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.Transcript.DBPath)
				passed++
			}

			// 4. Channels configured
			channels := 0
			if cfg.Channels.Telegram.Enabled {
				channels++
				if cfg.Channels.Telegram.Token == "" {
					printFail("Telegram", "enabled but no token configured")
					failed++
				} else {
					printPass("Telegram", "configured")
					passed++
				}
				if err := checkPort(cfg.Channels.Telegram.Port); err != nil {
					printWarn("Webhook port", fmt.Sprintf("port %d may be in use: %v", cfg.Channels.Telegram.Port, err))
					warned++
				} else {
					printPass("Webhook port", fmt.Sprintf(":%d available", cfg.Channels.Telegram.Port))
					passed++
				}
			}
			if cfg.Channels.Discord.Enabled {
				channels++
				if cfg.Channels.Discord.Token == "" {
					printFail("Discord", "enabled but no token configured")
					failed++
				} else {
					printPass("Discord", "configured")
					passed++
				}
			}
			if channels == 0 {
				printFail("Channels", "no channels enabled")
				failed++
			}

			// 5. Completion backend configured
			if cfg.Completion.APIKey == "" {
				printWarn("Completion", "no API key configured")
				warned++
			} else {
				printPass("Completion", cfg.Completion.Model)
				passed++
			}

			// 6. Knowledge source reachable
			if err := checkURL(cfg.Enrichment.SourceURL); err != nil {
				printWarn("Knowledge source", fmt.Sprintf("%s: %v", cfg.Enrichment.SourceURL, err))
				warned++
			} else {
				printPass("Knowledge source", cfg.Enrichment.SourceURL)
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running ektifabot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nektifabot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! ektifabot is ready to run.\n")
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
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

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

func checkURL(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
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
