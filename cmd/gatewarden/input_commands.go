package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gatewarden/internal/api"
	"gatewarden/internal/ipc"
)

func newInputCommands(ctx *commandContext) []*cobra.Command {
	var direction string
	var detectJSON bool
	detectCmd := &cobra.Command{
		Use:   "detect <camera> [plate]",
		Short: "Push a plate reading as if a camera produced it",
		Long: "Push one plate reading into the camera's stabilizer. Omit the plate to " +
			"record an empty reading, which resets the camera's streak. --direction " +
			"is only used when the camera is not configured.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.DetectionRequest{CameraID: args[0], Direction: direction}
			if len(args) == 2 {
				req.Plate = args[1]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Detect(cmd.Context(), req)
				if err != nil {
					return err
				}
				if detectJSON {
					return writeJSON(cmd, resp)
				}
				printDetection(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	detectCmd.Flags().StringVar(&direction, "direction", "", "ENTER or EXIT for unconfigured cameras")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "Output as JSON")

	var credentialJSON bool
	credentialCmd := &cobra.Command{
		Use:   "credential <user-id>",
		Short: "Present a user credential to approve that user's pending plate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Credential(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if credentialJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				printResolution(stdout, resp, shouldColorize(stdout))
				return nil
			})
		},
	}
	credentialCmd.Flags().BoolVar(&credentialJSON, "json", false, "Output as JSON")

	return []*cobra.Command{detectCmd, credentialCmd}
}

func printDetection(out io.Writer, resp *api.DetectionResponse) {
	switch {
	case resp.Enqueued && resp.Pending != nil:
		fmt.Fprintf(out, "Plate %s queued for approval (%s via %s)\n", resp.Pending.Plate, resp.Pending.Direction, resp.CameraID)
	case resp.Emitted:
		fmt.Fprintf(out, "Stable plate on %s was already pending\n", resp.CameraID)
	default:
		fmt.Fprintf(out, "Reading recorded on %s\n", resp.CameraID)
	}
}
