// Package cmd implements the bavini command-line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"bavini/config"
	"bavini/log"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bavini",
	Short: "Virtual POSIX-like runtime kernel",
	Long: `bavini hosts a pluggable virtual filesystem with mount points and a
virtual terminal that runs shell pipelines against it, entirely in
process. No real process is spawned and no path outside the configured
backends is touched.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to bavini.ini")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log mount and dispatch activity")

	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// loadSetup resolves the configuration and logger shared by subcommands.
func loadSetup() (*config.Config, log.LibraryLogger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Verbose = verbose
	var logger log.LibraryLogger = log.NoOpLogger{}
	if verbose {
		logger = log.StdoutLogger{}
	}
	return cfg, logger, nil
}
