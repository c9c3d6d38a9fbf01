package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aretw0/pipette/internal/cli"
	"github.com/aretw0/pipette/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pipette",
	Short: "pipette runs liquid-handling protocols",
	Long: `pipette turns liquid-handling protocols into motion-controller commands.
Protocols can be simulated, validated or run on a robot attached to a serial port.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default pipette.yaml in the working or user config directory)")
	rootCmd.PersistentFlags().Bool("debug", false, "Write debug logs to stderr")
	rootCmd.PersistentFlags().String("log-format", logging.FormatText, "Debug log format (text or json)")
}

// addCommonFlags registers the flags shared by simulate and run.
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("custom-labware-path", "L", nil, "Directory of custom labware definitions (repeatable)")
	cmd.Flags().Bool("json", false, "Print the run log as NDJSON records")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print the run summary")
	cmd.Flags().String("redis-addr", "", "Archive runs in Redis at this address")
	cmd.Flags().String("redis-password", "", "Redis password")
	cmd.Flags().Int("redis-db", 0, "Redis database number")
	cmd.Flags().Duration("run-ttl", 0, "Expire archived runs after this long (0 keeps them)")
	cmd.Flags().String("sqlite-path", "", "Archive runs in this SQLite file")
	cmd.Flags().String("archive-key", "", "Encrypt archived runs with this AES-256 key")
	cmd.Flags().StringArray("redact", nil, "Mask matches of this pattern in archived run logs (repeatable)")
}

func commonOptions(cmd *cobra.Command, args []string) cli.Common {
	labware, _ := cmd.Flags().GetStringArray("custom-labware-path")
	jsonMode, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")
	debug, _ := cmd.Flags().GetBool("debug")
	logFormat, _ := cmd.Flags().GetString("log-format")
	redisAddr, _ := cmd.Flags().GetString("redis-addr")
	redisPassword, _ := cmd.Flags().GetString("redis-password")
	redisDB, _ := cmd.Flags().GetInt("redis-db")
	runTTL, _ := cmd.Flags().GetDuration("run-ttl")
	sqlitePath, _ := cmd.Flags().GetString("sqlite-path")
	archiveKey, _ := cmd.Flags().GetString("archive-key")
	redact, _ := cmd.Flags().GetStringArray("redact")

	return cli.Common{
		ProtocolPath:  args[0],
		LabwarePaths:  labware,
		JSON:          jsonMode,
		Debug:         debug,
		LogFormat:     logFormat,
		Quiet:         quiet,
		RedisAddr:     redisAddr,
		RedisPassword: redisPassword,
		RedisDB:       redisDB,
		RunTTL:        runTTL,
		SQLitePath:    sqlitePath,
		ArchiveKey:    archiveKey,
		Redact:        redact,
	}
}

// defaultTimeout bounds how long the robot may take to acknowledge one instruction.
const defaultTimeout = 30 * time.Second
