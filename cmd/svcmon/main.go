package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
}

// CrashesFlags holds flags for the crashes command
type CrashesFlags struct {
	Lookback       time.Duration
	IncludeReports bool
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	crashesFlags := &CrashesFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags),
		createCheckCommand(globalFlags),
		createCrashesCommand(globalFlags, crashesFlags),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "svcmon",
		Short: "Keep a single executable running",
		Long: `svcmon watches one executable, relaunches it when it stops and answers
the Windows security prompt that can block an unattended launch.

Examples:
  svcmon run --config=svcmon.json
  svcmon check --config=svcmon.json
  svcmon crashes --lookback=24h`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to config file (JSON, TOML or YAML; default ./svcmon.*)")
	return root
}

func createRunCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Supervise the configured executable until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runSupervisor(ctx, globalFlags.ConfigPath, cmd.OutOrStdout())
		},
	}
}

func createCheckCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report once whether the executable is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(globalFlags.ConfigPath, cmd.OutOrStdout())
		},
	}
}

func createCrashesCommand(globalFlags *GlobalFlags, flags *CrashesFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crashes",
		Short: "Print fatal crash reports for the executable from the Application log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrashes(cmd.Context(), globalFlags.ConfigPath, *flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&flags.Lookback, "lookback", 0, "how far back to search (default crash_report.lookback)")
	cmd.Flags().BoolVar(&flags.IncludeReports, "include-reports", false, "also list Windows Error Reporting events (ID 1001)")
	return cmd
}
