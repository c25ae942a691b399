package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath    string
	verbosity     int
	errorLogPath  string
	interval      float64
	partialSize   string
	partialBuffer string
	fullBuffer    string
	workers       int
)

var rootCmd = &cobra.Command{
	Use:   "dupdup",
	Short: "dupdup - find files with identical content",
	Long:  "dupdup walks a directory tree, groups regular files by the MD5 digest of their content " +
		"and writes the groups of duplicates to a report. A cheap prefilter over the first bytes " +
		"of every file keeps full reads to the files that can still be duplicates.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dupdup/config.ini)")
	flags.CountVarP(&verbosity, "verbose", "v", "more diagnostics on stderr (-v info, -vv debug)")
	flags.StringVarP(&errorLogPath, "error", "e", "", "error log file (default error-<timestamp>.log)")
	flags.Float64VarP(&interval, "interval", "i", 1.0, "seconds between progress lines, 0 prints every file")
	flags.StringVar(&partialSize, "partial-size", "4KiB", "bytes hashed by the prefilter")
	flags.StringVar(&partialBuffer, "partial-buffer", "4KiB", "read buffer for the prefilter")
	flags.StringVar(&fullBuffer, "full-buffer", "16KiB", "read buffer for full hashing")
	flags.IntVarP(&workers, "workers", "w", 1, "files hashed concurrently")
}
