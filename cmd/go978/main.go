package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go978/internal/app"
)

func main() {
	if err := newRootCmd(runApplication).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runApplication(config app.Config) error {
	return app.NewApplication(config).Start()
}

// newRootCmd builds the command. run is invoked with the final
// configuration.
func newRootCmd(run func(app.Config) error) *cobra.Command {
	flags := app.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "go978 [flags] <directory>",
		Short: "UAT (978 MHz) ADS-B decoder",
		Long: `UAT decoder reading dump978 frames.

Reads dump978 text output from stdin or a file, applies Reed-Solomon
error correction to raw frames, decodes ADS-B payloads, tracks aircraft
and publishes receiver.json and aircraft.json into <directory> once per
interval.

Example usage:
  dump978 | go978 --interval 1s --expire 300s /run/go978`,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if flags.ShowVersion {
				return nil
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.ShowVersion {
				app.ShowVersion()
				return nil
			}
			cmd.SilenceUsage = true

			config, err := buildConfig(cmd, flags, args)
			if err != nil {
				return err
			}
			return run(config)
		},
	}

	rootCmd.Flags().StringVarP(&flags.Input, "input", "i", "", "Input file with dump978 frames (default stdin)")
	rootCmd.Flags().StringVarP(&flags.ConfigFile, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().DurationVar(&flags.PublishInterval, "interval", app.DefaultPublishInterval, "Interval between aircraft.json updates")
	rootCmd.Flags().DurationVar(&flags.ExpireAfter, "expire", app.DefaultExpireAfter, "Drop aircraft not heard from for this long")
	rootCmd.Flags().StringVar(&flags.ArchiveDir, "archive-dir", "", "Directory for the daily frame archive (disabled if empty)")
	rootCmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (disabled if empty)")
	rootCmd.Flags().StringVar(&flags.Log.File, "log-file", "", "Also write logs to this file")
	rootCmd.Flags().BoolVarP(&flags.Log.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&flags.ShowVersion, "version", false, "Show version information")

	return rootCmd
}

// buildConfig layers defaults, the optional config file, flags that were
// set explicitly and finally the positional output directory.
func buildConfig(cmd *cobra.Command, flags app.Config, args []string) (app.Config, error) {
	if flags.ConfigFile == "" {
		flags.OutputDir = args[0]
		return flags, flags.Validate()
	}

	config := app.DefaultConfig()
	if err := app.LoadConfigFile(flags.ConfigFile, &config); err != nil {
		return app.Config{}, err
	}
	config.ConfigFile = flags.ConfigFile

	set := cmd.Flags().Changed
	if set("input") {
		config.Input = flags.Input
	}
	if set("interval") {
		config.PublishInterval = flags.PublishInterval
	}
	if set("expire") {
		config.ExpireAfter = flags.ExpireAfter
	}
	if set("archive-dir") {
		config.ArchiveDir = flags.ArchiveDir
	}
	if set("metrics-addr") {
		config.MetricsAddr = flags.MetricsAddr
	}
	if set("log-file") {
		config.Log.File = flags.Log.File
	}
	if set("verbose") {
		config.Log.Verbose = flags.Log.Verbose
	}

	config.OutputDir = args[0]
	return config, config.Validate()
}
