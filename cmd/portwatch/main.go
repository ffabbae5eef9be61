package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errTargetsDown) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string
}

const defaultConfigPath = "portwatch.toml"

func buildRoot() *cobra.Command {
	global := &GlobalFlags{}
	root := createRootCommand(global)
	root.AddCommand(
		createRunCommand(global),
		createCheckCommand(global),
		createStatusCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "portwatch",
		Short: "Keep TCP services listening by restarting them when their port goes down",
		Long: `Portwatch probes a set of TCP ports on a fixed interval and runs each
port's start command when nothing is listening, within a sliding-window
restart budget.

Examples:
  portwatch run --config=/etc/portwatch.toml
  portwatch run --daemonize --pidfile=/run/portwatch.pid
  portwatch check                     # one probe pass, exit 1 if any port is down
  portwatch status --api-url=http://host:8080/api`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", defaultConfigPath, "path to config file (toml, yaml or json)")
	return root
}

func createRunCommand(global *GlobalFlags) *cobra.Command {
	f := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "run [config]",
		Short: "Run the monitor loop",
		Long: `Run the monitor loop in the foreground, or in the background with --daemonize.
The status API and metrics endpoint start when configured under [server] and [metrics].`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchdog(cmd.Context(), cmd.ErrOrStderr(), configPath(global, args), *f)
		},
	}
	cmd.Flags().BoolVar(&f.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&f.PidFile, "pidfile", "", "write the daemon PID to this file (overrides [daemon].pidfile)")
	cmd.Flags().StringVar(&f.LogFile, "logfile", "", "redirect daemon output to file (overrides [daemon].logfile)")
	cmd.Flags().BoolVar(&f.Once, "once", false, "run a single monitoring cycle and exit")
	return cmd
}

func createCheckCommand(global *GlobalFlags) *cobra.Command {
	f := &CheckFlags{}
	cmd := &cobra.Command{
		Use:   "check [config]",
		Short: "Probe every port once without restarting anything",
		Long: `Probe every configured port once and print the result.
Exits non-zero when any port is down. Start commands are never run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), configPath(global, args), *f)
		},
	}
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print JSON instead of a table")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 30*time.Second, "overall deadline for the probe pass")
	return cmd
}

func createStatusCommand() *cobra.Command {
	f := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status reported by a running daemon",
		Long: `Query a running daemon's status API.

Examples:
  portwatch status
  portwatch status --port=5011
  portwatch status --api-url=https://remote:8443/api --ca-cert=ca.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), *f)
		},
	}
	cmd.Flags().IntVar(&f.Port, "port", 0, "show a single port")
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print JSON instead of a table")
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "daemon URL (default http://127.0.0.1:8080/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	cmd.Flags().StringVar(&f.CACert, "ca-cert", "", "CA certificate for an HTTPS daemon")
	cmd.Flags().BoolVar(&f.Insecure, "insecure", false, "skip TLS verification")
	return cmd
}

func configPath(global *GlobalFlags, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return global.ConfigPath
}
