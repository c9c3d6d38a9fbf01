package main

import (
	"io"
	"os"

	"github.com/aretw0/pipette/internal/cli"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain [file]",
	Short: "Explain G-code lines in plain words",
	Long:  `Reads G-code from the file, or from stdin when no file is given, and prints one explanation per instruction.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if len(args) > 0 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return cli.Explain(in, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
}
