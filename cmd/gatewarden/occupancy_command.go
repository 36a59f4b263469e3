package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"gatewarden/internal/ipc"
)

func newOccupancyCommand(ctx *commandContext) *cobra.Command {
	var insideOnly bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "occupancy [plate]",
		Aliases: []string{"car-status"},
		Short:   "Show which plates are inside",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plate := ""
			if len(args) == 1 {
				plate = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Occupancy(cmd.Context(), plate)
				if err != nil {
					return err
				}
				if insideOnly {
					for p, state := range resp.Plates {
						if state != "INSIDE" {
							delete(resp.Plates, p)
						}
					}
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				printOccupancy(cmd.OutOrStdout(), resp.Plates)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&insideOnly, "inside", false, "Only list plates currently inside")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printOccupancy(out io.Writer, plates map[string]string) {
	if len(plates) == 0 {
		fmt.Fprintln(out, "No plates tracked")
		return
	}
	keys := make([]string, 0, len(plates))
	for plate := range plates {
		keys = append(keys, plate)
	}
	slices.Sort(keys)
	rows := make([][]string, 0, len(keys))
	for _, plate := range keys {
		rows = append(rows, []string{plate, plates[plate]})
	}
	fmt.Fprint(out, renderTable([]string{"Plate", "State"}, rows, nil))
}
