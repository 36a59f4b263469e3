package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gatewarden/internal/api"
	"gatewarden/internal/daemonrun"
	"gatewarden/internal/logs"
	"gatewarden/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var component string
	var camera string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		Long: "Display daemon logs from the daemon API, falling back to the log file " +
			"when the daemon is not running. Filters need the API.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(
				cmd.Context(),
				client,
				daemonrun.CurrentLogPath(cfg),
				logstream.Options{
					Lines:   lines,
					Follow:  follow,
					Filters: logstream.Filters{Component: component, Camera: camera},
				},
				func(evt api.LogEvent) { fmt.Fprintln(out, formatLogEvent(evt)) },
				func(line string) { fmt.Fprintln(out, line) },
			)
			if errors.Is(err, logstream.ErrFiltersRequireAPI) {
				return errors.New("--component and --camera need a running daemon")
			}
			if err != nil {
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&component, "component", "", "Only events from this component")
	cmd.Flags().StringVar(&camera, "camera", "", "Only events for this camera")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{evt.Timestamp.Local().Format(displayTimeLayout), level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, "["+component+"]")
	}
	if subject := logSubject(evt.CameraID, evt.Plate); subject != "" {
		parts = append(parts, subject)
	}
	line := strings.Join(parts, " ")
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " - " + message
	}
	if len(evt.Details) == 0 {
		return line
	}
	var b strings.Builder
	b.WriteString(line)
	for _, detail := range evt.Details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n    - %s: %s", detail.Label, detail.Value)
	}
	return b.String()
}

func logSubject(camera, plate string) string {
	camera = strings.TrimSpace(camera)
	plate = strings.TrimSpace(plate)
	switch {
	case camera != "" && plate != "":
		return fmt.Sprintf("%s@%s", plate, camera)
	case plate != "":
		return plate
	default:
		return camera
	}
}
