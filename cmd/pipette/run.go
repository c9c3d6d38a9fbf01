package main

import (
	"context"

	"github.com/aretw0/pipette/internal/cli"
	"github.com/aretw0/pipette/pkg/hardware/live"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <protocol>",
	Short: "Run a protocol on a robot",
	Long: `Runs the protocol on the motion controller attached to --port.
With --redis-addr the robot is locked for the duration of the run and the run is archived.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		baud, _ := cmd.Flags().GetInt("baud")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		mount, _ := cmd.Flags().GetString("mount")
		home, _ := cmd.Flags().GetBool("home")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		robotID, _ := cmd.Flags().GetString("robot-id")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		opts := cli.RunOptions{
			Common:      commonOptions(cmd, args),
			Port:        port,
			Baud:        baud,
			Timeout:     timeout,
			Mount:       mount,
			Home:        home,
			MetricsAddr: metricsAddr,
			RobotID:     robotID,
		}
		return cli.Run(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addCommonFlags(runCmd)

	runCmd.Flags().String("port", "", "Serial device of the motion controller")
	runCmd.Flags().Int("baud", live.DefaultBaudRate, "Serial baud rate")
	runCmd.Flags().Duration("timeout", defaultTimeout, "Per-instruction acknowledgement timeout")
	runCmd.Flags().String("mount", string(live.MountLeft), "Pipette carriage to drive (left or right)")
	runCmd.Flags().Bool("home", true, "Home every axis before the first action")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	runCmd.Flags().String("robot-id", "", "Name of the Redis robot lock (default: the port)")
	_ = runCmd.MarkFlagRequired("port")
}
