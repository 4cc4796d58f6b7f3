package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/keeprun/keeprun"
	"github.com/keeprun/keeprun/internal/history/sqlite"
)

// version is set at build time via -ldflags.
var version = "dev"

// GlobalFlags holds the persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// HistoryFlags holds flags for the history command.
type HistoryFlags struct {
	Limit int
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	historyFlags := &HistoryFlags{}

	root := &cobra.Command{
		Use:   "keeprun",
		Short: "Keep a single program running",
		Long: `Keeprun launches one external program, waits for it to exit, logs the
outcome to a monitor log, sleeps a fixed interval, and starts it again,
forever. Every exit, clean or crash, triggers the same fixed-delay restart.

Examples:
  keeprun run                       # uses keeprun.toml next to the executable
  keeprun run --config bot.toml
  keeprun history --limit 50`,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML config file (default: keeprun.toml next to the executable)")

	root.AddCommand(
		createRunCommand(globalFlags),
		createHistoryCommand(globalFlags, historyFlags),
		createVersionCommand(),
	)
	return root
}

func createRunCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the supervisor loop",
		Long: `Start the restart loop. The loop has no exit condition: terminate the
keeprun process to stop it.

Examples:
  keeprun run
  keeprun run --config /etc/keeprun/bot.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(flags)
		},
	}
}

func runLoop(flags *GlobalFlags) error {
	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return err
	}
	cfg, err := keeprun.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	// Anchor relative references the child itself may make (the config's
	// paths are already absolute at this point).
	if err := os.Chdir(cfg.BaseDir); err != nil {
		return fmt.Errorf("chdir to %s: %w", cfg.BaseDir, err)
	}

	sup, err := keeprun.New(cfg)
	if err != nil {
		return err
	}

	if cfg.Telemetry.Listen != "" {
		if err := keeprun.RegisterMetricsDefault(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		if _, err := keeprun.NewTelemetryServer(cfg.Telemetry.Listen, cfg.Telemetry.BasePath, sup); err != nil {
			return fmt.Errorf("start telemetry server: %w", err)
		}
	}

	// No signal handling: the loop runs until the OS terminates the process.
	return sup.Run(context.Background())
}

// resolveConfigPath falls back to keeprun.toml in the executable's own
// directory, so a bare "keeprun run" anchors all relative paths there
// regardless of the caller's working directory.
func resolveConfigPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "keeprun.toml"), nil
}

func createHistoryCommand(flags *GlobalFlags, historyFlags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent child runs",
		Long: `List recent start/exit events recorded by the history sink.
Listing requires a SQLite history DSN in the config.

Examples:
  keeprun history
  keeprun history --limit 50 --config bot.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(flags, historyFlags)
		},
	}
	cmd.Flags().IntVar(&historyFlags.Limit, "limit", 20, "maximum number of events to show")
	return cmd
}

func runHistory(flags *GlobalFlags, historyFlags *HistoryFlags) error {
	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return err
	}
	cfg, err := keeprun.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	dsn := cfg.History.DSN
	if dsn == "" {
		return fmt.Errorf("no history.dsn configured in %s", cfgPath)
	}
	if !isSQLiteDSN(dsn) {
		return fmt.Errorf("history listing supports SQLite DSNs only, got %q", dsn)
	}

	sink, err := sqlite.New(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	entries, err := sink.Recent(context.Background(), historyFlags.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no history recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Event", "Name", "PID", "Run", "Exit")
	for _, e := range entries {
		exit := ""
		if e.Event == "exit" {
			exit = strconv.Itoa(e.ExitCode)
		}
		table.Append([]string{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Event,
			e.Name,
			strconv.Itoa(e.PID),
			strconv.Itoa(e.Run),
			exit,
		})
	}
	table.Render()
	return nil
}

func isSQLiteDSN(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "sqlite://") || !strings.Contains(lower, "://")
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the keeprun version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "keeprun %s\n", version)
		},
	}
}
