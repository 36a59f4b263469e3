package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gatewarden/internal/api"
	"gatewarden/internal/daemonctl"
)

const (
	stopGracePeriod  = 5 * time.Second
	startWaitTimeout = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the gatewarden daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(
				cmd.Context(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				startWaitTimeout,
			)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level for the daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the gatewarden daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in %s; killed pid %d\n", stopGracePeriod, result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the gatewarden daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(
				cmd.Context(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartLogLevel),
				stopGracePeriod,
				startWaitTimeout,
			)
			if err != nil {
				return err
			}
			if result.WasRunning {
				if result.Stop.ForcedKill {
					fmt.Fprintf(stdout, "Killed unresponsive daemon (pid %d)\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override logging.level for the daemon")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, barrier and lane status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return wrapClientError(err, ctx.configValue().Paths.APIBind)
			}
			if statusJSON {
				return writeJSON(cmd, status)
			}
			stdout := cmd.OutOrStdout()
			printStatus(stdout, status, shouldColorize(stdout))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printStatus(out io.Writer, status *api.DaemonStatus, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Running {
		detail := "pid " + strconv.Itoa(status.PID)
		if status.StartedAt != "" {
			detail += ", since " + displayTime(status.StartedAt)
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		detail := "not running"
		if status.PID > 0 {
			detail = fmt.Sprintf("process %d alive but API not answering", status.PID)
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", statusError, detail, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Journal", statusInfo,
		fmt.Sprintf("%s (schema v%d, %d entries)", status.JournalPath, status.SchemaVersion, status.LogEntries), colorize))
	if status.LogPath != "" {
		fmt.Fprintln(out, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Gate", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, barrierLine(status.Barrier, colorize))
	pendingKind := statusOK
	if status.PendingCount > 0 {
		pendingKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Pending", pendingKind, strconv.Itoa(status.PendingCount), colorize))
	fmt.Fprintln(out, renderStatusLine("Inside", statusInfo, strconv.Itoa(status.InsideCount), colorize))
	if status.Running {
		fmt.Fprintln(out, relayLine(status.Relay, colorize))
	}

	if len(status.Checks) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Checks", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, line := range checkLines(status.Checks, colorize) {
			fmt.Fprintln(out, line)
		}
	}

	if len(status.Lanes) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Lanes", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := make([][]string, 0, len(status.Lanes))
	for _, lane := range status.Lanes {
		rows = append(rows, []string{
			lane.CameraID,
			lane.Direction,
			orDash(lane.LastPlate),
			fmt.Sprintf("%d/%d", lane.Count, lane.Threshold),
			yesNo(lane.Emitted),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Camera", "Direction", "Last Plate", "Streak", "Emitted"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: logLevel}
	if ctx.configPath != "" {
		opts.ConfigPath = ctx.configPath
	} else {
		opts.ConfigPath = flagValue(ctx.configFlag)
	}
	return opts
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
