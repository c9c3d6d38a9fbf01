package main

import (
	"context"

	"github.com/aretw0/pipette/internal/cli"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <protocol>",
	Short: "Simulate a protocol and print its run log",
	Long: `Runs the protocol against the simulator. No hardware is touched.
Ctrl-C stops the run between actions and still prints the log collected so far.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		opts := cli.SimulateOptions{Common: commonOptions(cmd, args)}
		return cli.Simulate(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	addCommonFlags(simulateCmd)
}
