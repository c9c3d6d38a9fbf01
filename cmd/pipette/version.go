package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/pipette"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pipette",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pipette version %s\n", strings.TrimSpace(pipette.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
