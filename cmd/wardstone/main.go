// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for the Wardstone
// application using the Cobra library. It defines the root command,
// subcommands (like monitor, audit, history), flags, and the main entry
// point for execution.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/wardstone/buildvars"
	"github.com/toeirei/wardstone/internal/config"
	"github.com/toeirei/wardstone/internal/crypto"
	"github.com/toeirei/wardstone/internal/db"
	"github.com/toeirei/wardstone/internal/envcheck"
	"github.com/toeirei/wardstone/internal/export"
	"github.com/toeirei/wardstone/internal/i18n"
	"github.com/toeirei/wardstone/internal/keyaudit"
	"github.com/toeirei/wardstone/internal/logging"
	"github.com/toeirei/wardstone/internal/monitoring"
)

var (
	cfgFile string
	cfg     config.Config
)

// main is the entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// newRootCmd creates and configures a new root cobra command. This function
// is used to create the main application command as well as fresh instances
// for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wardstone",
		Short: i18n.T("cli.short"),
		Long: `Wardstone continuously scores the security posture of a deployment.
It audits a tracked credential inventory, probes the at-rest encryption
subsystem and checks the runtime environment, condenses the findings into
a 0-100 score with a bounded audit history, and raises alerts when the
posture deteriorates.

Running without a subcommand prints the current status.`,
		PersistentPreRunE: setupEnvironment,
		Run: func(cmd *cobra.Command, args []string) {
			runStatus()
		},
	}

	cmd.AddCommand(monitorCmd)
	cmd.AddCommand(auditCmd)
	cmd.AddCommand(historyCmd)
	cmd.AddCommand(alertsCmd)
	cmd.AddCommand(resolveCmd)
	cmd.AddCommand(cleanupCmd)
	cmd.AddCommand(statusCmd)
	cmd.AddCommand(exportCmd)
	cmd.AddCommand(importCmd)
	cmd.AddCommand(dbMaintainCmd)
	cmd.AddCommand(keysCmd)

	cmd.Version = buildvars.VersionOrDefault("dev")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is wardstone.yaml in the user or system config dir)")
	cmd.PersistentFlags().String("db-type", "sqlite", "Database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("db-dsn", "./wardstone.db", "Database connection string (DSN)")
	cmd.PersistentFlags().String("lang", "en", `Output language ("en", "de")`)
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return cmd
}

// setupEnvironment loads and validates the configuration, switches language
// and log level, and initializes the database. It runs before every command.
func setupEnvironment(cmd *cobra.Command, args []string) error {
	var extra *string
	if cfgFile != "" {
		extra = &cfgFile
	}

	loaded, err := config.LoadConfig[config.Config](cmd, config.Defaults(), extra)
	if err != nil {
		return fmt.Errorf("%s", i18n.T("cli.config_error", err))
	}
	applyFlagOverrides(cmd, &loaded)

	if err := loaded.Monitoring.Validate(); err != nil {
		return fmt.Errorf("%s", i18n.T("cli.config_error", err))
	}
	cfg = loaded

	i18n.Init(cfg.Language)
	logging.SetDebug(cfg.Debug)
	db.SetDebug(cfg.Debug)

	if err := db.InitDB(cfg.Database.Type, cfg.Database.Dsn); err != nil {
		return fmt.Errorf("%s", i18n.T("cli.db_init_failed", err))
	}
	return nil
}

// applyFlagOverrides copies explicitly-set persistent flags onto the loaded
// configuration. Viper binds flags by name, but our flag names (db-type)
// differ from the config keys (database.type), so the mapping is explicit.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db-type") {
		c.Database.Type, _ = flags.GetString("db-type")
	}
	if flags.Changed("db-dsn") {
		c.Database.Dsn, _ = flags.GetString("db-dsn")
	}
	if flags.Changed("lang") {
		c.Language, _ = flags.GetString("lang")
	}
	if flags.Changed("debug") {
		c.Debug, _ = flags.GetBool("debug")
	}
}

// keyfilePath returns the location of the encryption master keyfile, next to
// the user configuration file.
func keyfilePath() string {
	path, err := config.GetConfigPath(false)
	if err != nil {
		return "./wardstone.key"
	}
	return filepath.Join(filepath.Dir(path), "wardstone.key")
}

// configFilePath returns the configuration file location the environment
// checker should inspect, preferring an explicit --config flag.
func configFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	path, err := config.GetConfigPath(false)
	if err != nil {
		return "./wardstone.yaml"
	}
	return path
}

// buildService assembles a monitoring service wired to the shared store and
// the three audit collaborators, seeded with the persisted history window
// and alerts.
func buildService() (*monitoring.Service, error) {
	store := db.GetStore()
	auditor := keyaudit.New(store, cfg.Monitoring)
	prober := crypto.NewProber(keyfilePath())
	checker := envcheck.New(cfg, configFilePath(), keyfilePath())

	svc := monitoring.New(cfg.Monitoring, auditor, prober, checker, monitoring.Options{
		Cleaner: auditor,
		Archive: store,
	})

	cutoff := time.Now().UTC().Add(-cfg.Monitoring.HistoryRetention())
	records, err := db.GetAuditRecordsSince(cutoff)
	if err != nil {
		return nil, fmt.Errorf("loading audit history: %w", err)
	}
	alerts, err := db.GetAllAlerts()
	if err != nil {
		return nil, fmt.Errorf("loading alerts: %w", err)
	}
	svc.Seed(records, alerts)
	return svc, nil
}

// monitorCmd runs the scheduler in the foreground until interrupted.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the monitoring scheduler until interrupted",
	Long: `Starts the periodic security-audit, credential-cleanup and alert-expiry
tasks and keeps them running in the foreground. An audit cycle runs
immediately at startup. Stop with Ctrl+C or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		// The probe needs a master key; create one on first run.
		if err := crypto.EnsureKeyFile(keyfilePath()); err != nil {
			logging.Warnf("could not ensure encryption keyfile: %v", err)
		}

		svc, err := buildService()
		if err != nil {
			log.Fatalf("%v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fmt.Println(i18n.T("monitor.started"))
		svc.Start(ctx)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		svc.Stop()
		fmt.Println(i18n.T("monitor.stopped"))
	},
}

// auditCmd runs a single on-demand audit cycle and prints the result.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run one security audit cycle",
	Long: `Gathers findings from the credential auditor, the encryption health
probe and the environment checker, commits an audit record and evaluates
the alert rules, then prints the resulting score.`,
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := buildService()
		if err != nil {
			log.Fatalf("%v", err)
		}

		fmt.Println(i18n.T("audit.running"))
		record, err := svc.RunAuditCycle(context.Background())
		if err != nil {
			log.Fatalf("%s", i18n.T("audit.failed", err))
		}

		fmt.Println(renderAuditRecord(record))
	},
}

// historyCmd prints the audit history window with trend statistics.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the audit history and score trends",
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = cfg.Monitoring.HistoryRetentionDays
		}

		svc, err := buildService()
		if err != nil {
			log.Fatalf("%v", err)
		}

		result := svc.QueryHistory(days)
		fmt.Println(renderHistory(days, result))
	},
}

// alertsCmd lists active alerts, or every persisted alert with --all.
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List security alerts",
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")

		if all {
			alerts, err := db.GetAllAlerts()
			if err != nil {
				log.Fatalf("%v", err)
			}
			fmt.Println(renderAlerts(alerts, true))
			return
		}

		svc, err := buildService()
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(renderAlerts(svc.ActiveAlerts(), false))
	},
}

// resolveCmd marks one alert as resolved.
var resolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Resolve a security alert",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		note, _ := cmd.Flags().GetString("note")

		svc, err := buildService()
		if err != nil {
			log.Fatalf("%v", err)
		}

		if svc.ResolveAlert(id, note) {
			fmt.Println(i18n.T("alerts.resolved_ok", id))
		} else {
			fmt.Println(i18n.T("alerts.resolve_failed", id))
			os.Exit(1)
		}
	},
}

// cleanupCmd runs one stale-credential cleanup sweep.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired credentials past their grace period",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := buildService()
		if err != nil {
			log.Fatalf("%v", err)
		}

		result, err := svc.RunCleanup(context.Background())
		if err != nil {
			log.Fatalf("%v", err)
		}

		fmt.Println(i18n.T("cleanup.summary", result.Examined, len(result.Cleaned), len(result.Errors)))
		for _, e := range result.Errors {
			fmt.Println(i18n.T("cleanup.error_item", e))
		}
	},
}

// statusCmd prints the current posture summary.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current security posture",
	Run: func(cmd *cobra.Command, args []string) {
		runStatus()
	},
}

// runStatus renders the latest audit record and alert summary. Shared by
// the bare root command and the status subcommand.
func runStatus() {
	svc, err := buildService()
	if err != nil {
		log.Fatalf("%v", err)
	}

	window := svc.QueryHistory(cfg.Monitoring.HistoryRetentionDays)
	fmt.Println(renderStatus(svc.HealthStatus(), window))
}

// exportCmd writes a compressed backup of the full persisted state.
var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export history, alerts and inventory to a backup file",
	Long: `Snapshots the tracked key inventory, audit history, alerts and the
action log into a zstd-compressed JSON backup. The target file must not
already exist.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := args[0]

		backup, err := db.ExportDataForBackup()
		if err != nil {
			log.Fatalf("%s", i18n.T("export.failed", err))
		}
		if err := export.WriteBackupFile(backup, target); err != nil {
			log.Fatalf("%s", i18n.T("export.failed", err))
		}
		fmt.Println(i18n.T("export.written", target))
	},
}

// importCmd restores the persisted state from a backup file.
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore history, alerts and inventory from a backup file",
	Long: `Reads a zstd-compressed JSON backup written by 'wardstone export' and
replaces the entire persisted state with its contents.

WARNING: this wipes all existing Wardstone data first and is not
reversible. Intended for disaster recovery or for migrating between
database backends (e.g., from SQLite to PostgreSQL).`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source := args[0]

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			if promptForConfirmation(i18n.T("import.confirm")) != "yes" {
				fmt.Println(i18n.T("import.aborted"))
				os.Exit(1)
			}
		}

		fmt.Println(i18n.T("import.starting", source))
		backup, err := export.ReadBackupFile(source)
		if err != nil {
			log.Fatalf("%s", i18n.T("import.failed", err))
		}
		if err := db.ImportDataFromBackup(backup); err != nil {
			log.Fatalf("%s", i18n.T("import.failed", err))
		}
		fmt.Println(i18n.T("import.success"))
	},
}

// dbMaintainCmd runs database maintenance tasks for the configured database.
var dbMaintainCmd = &cobra.Command{
	Use:   "db-maintain",
	Short: "Run database maintenance (VACUUM/OPTIMIZE) for the configured DB",
	Long:  `Runs engine-specific maintenance tasks (VACUUM, OPTIMIZE TABLE, PRAGMA optimize).`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := db.RunDBMaintenance(cfg.Database.Type, cfg.Database.Dsn); err != nil {
			fmt.Printf("Maintenance failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Maintenance completed successfully")
	},
}

// promptForConfirmation displays a prompt and reads a line from stdin.
func promptForConfirmation(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	return strings.TrimSpace(strings.ToLower(answer))
}

func init() {
	historyCmd.Flags().IntP("days", "d", 0, "Window size in days (default: the configured retention)")
	importCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	alertsCmd.Flags().Bool("all", false, "Include resolved alerts from persistent storage")
	resolveCmd.Flags().String("note", "", "Optional resolution note")
}
