package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gatewarden/internal/api"
	"gatewarden/internal/ipc"
)

func newGuardCommands(ctx *commandContext) []*cobra.Command {
	var pendingJSON bool
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List plates awaiting approval, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pending(cmd.Context())
				if err != nil {
					return err
				}
				if pendingJSON {
					return writeJSON(cmd, resp)
				}
				printPending(cmd.OutOrStdout(), resp.Items)
				return nil
			})
		},
	}
	pendingCmd.Flags().BoolVar(&pendingJSON, "json", false, "Output as JSON")

	approveCmd := resolutionCommand(ctx, "approve <plate>", "Approve a pending plate and open the barrier",
		func(cmd *cobra.Command, client *ipc.Client, plate string) (*api.ResolveResponse, error) {
			return client.Approve(cmd.Context(), plate)
		})
	rejectCmd := resolutionCommand(ctx, "reject <plate>", "Reject a pending plate",
		func(cmd *cobra.Command, client *ipc.Client, plate string) (*api.ResolveResponse, error) {
			return client.Reject(cmd.Context(), plate)
		})

	var resolveJSON bool
	resolveCmd := &cobra.Command{
		Use:   "resolve <plate> <approve|reject>",
		Short: "Resolve a pending plate with an explicit decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Resolve(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if resolveJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				printResolution(stdout, resp, shouldColorize(stdout))
				return nil
			})
		},
	}
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Output as JSON")

	openCmd := barrierCommand(ctx, "open", "Force the barrier open without a pending approval",
		func(cmd *cobra.Command, client *ipc.Client) (*api.BarrierActionResponse, error) {
			return client.ForceOpen(cmd.Context())
		})
	closeCmd := barrierCommand(ctx, "close", "Force the barrier closed",
		func(cmd *cobra.Command, client *ipc.Client) (*api.BarrierActionResponse, error) {
			return client.ForceClose(cmd.Context())
		})
	barrierCmd := barrierCommand(ctx, "barrier", "Show the barrier state",
		func(cmd *cobra.Command, client *ipc.Client) (*api.BarrierActionResponse, error) {
			view, err := client.Barrier(cmd.Context())
			if err != nil {
				return nil, err
			}
			return &api.BarrierActionResponse{Barrier: *view}, nil
		})

	return []*cobra.Command{pendingCmd, approveCmd, rejectCmd, resolveCmd, openCmd, closeCmd, barrierCmd}
}

type resolveFunc func(cmd *cobra.Command, client *ipc.Client, plate string) (*api.ResolveResponse, error)

func resolutionCommand(ctx *commandContext, use, short string, run resolveFunc) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := run(cmd, client, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				printResolution(stdout, resp, shouldColorize(stdout))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type barrierFunc func(cmd *cobra.Command, client *ipc.Client) (*api.BarrierActionResponse, error)

func barrierCommand(ctx *commandContext, use, short string, run barrierFunc) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := run(cmd, client)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Barrier)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintln(stdout, barrierLine(resp.Barrier, shouldColorize(stdout)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printPending(out io.Writer, items []api.PendingItem) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No plates awaiting approval")
		return
	}
	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			item.Plate,
			item.Direction,
			orDash(item.CameraID),
			displayTime(item.DetectedAt),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"#", "Plate", "Direction", "Camera", "Detected"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}

func printResolution(out io.Writer, resp *api.ResolveResponse, colorize bool) {
	entry := resp.Entry
	verb := "Rejected"
	if entry.Action != "REJECTED" {
		verb = "Approved"
	}
	line := fmt.Sprintf("%s %s", verb, entry.Plate)
	if entry.Direction != "" {
		line += " (" + strings.ToLower(entry.Direction) + ")"
	}
	if entry.ResolvedBy != "" {
		line += " by " + entry.ResolvedBy
	}
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, barrierLine(resp.Barrier, colorize))
}
