package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"gatewarden/internal/api"
	"gatewarden/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var query ipc.LogQuery
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"access-log"},
		Short:   "Show the access log, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Logs(cmd.Context(), query)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				printHistory(cmd.OutOrStdout(), resp.Entries)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&query.Limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().StringVar(&query.Plate, "plate", "", "Only entries for this plate")
	cmd.Flags().StringVar(&query.Action, "action", "", "Only entries with this action (ENTER, EXIT, REJECTED, ...)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printHistory(out io.Writer, entries []api.LogEntryView) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Access log is empty")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.CameraID
		if e.Reason != "" {
			detail = e.Reason
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			displayTime(e.Timestamp),
			orDash(e.Plate),
			e.Action,
			orDash(e.ResolvedBy),
			orDash(detail),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"ID", "Time", "Plate", "Action", "By", "Detail"},
		rows,
		[]columnAlignment{alignRight},
	))
}
