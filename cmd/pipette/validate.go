package main

import (
	"github.com/aretw0/pipette/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <protocol>",
	Short: "Check a protocol without running it",
	Long:  `Checks the protocol structure, its references and its API version. Nothing is executed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
