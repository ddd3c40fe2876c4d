package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zberg/go-kasaplug/internal/config"
	"github.com/zberg/go-kasaplug/internal/logging"
)

var (
	cfg      config.File
	logger   = logr.Discard()
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "kasactl",
	Short: "TP-Link Kasa smart plug control CLI",
	Long: `A command line interface for switching TP-Link Kasa smart plugs and power
strips that feed a power supply and its auxiliary outlets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		if err := config.ReadInConfig(v, v.GetString("config")); err != nil {
			return err
		}

		// The daemon reports reloads and listening addresses by default.
		defaultLevel := zerolog.ErrorLevel
		if cmd.Name() == serveCmd.Name() {
			defaultLevel = zerolog.InfoLevel
		}
		logger, closeLog = logging.New(logging.Options{
			Verbose:      v.GetBool("verbose"),
			Debug:        v.GetBool("debug"),
			File:         v.GetString("log-file"),
			DefaultLevel: defaultLevel,
		})

		var err error
		cfg, err = config.Load(v)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default $XDG_CONFIG_HOME/kasactl/config.yaml)")
	flags.BoolP("verbose", "v", false, "Enable informational logging")
	flags.Bool("debug", false, "Enable debug logging, including protocol traffic")
	flags.String("log-file", "", "Write logs to a rotated file instead of stderr")
	flags.Int("port", 9999, "Device TCP port for addresses without one")
	flags.Duration("timeout", 2*time.Second, "Time to wait for a device response")

	for _, name := range []string{"config", "verbose", "debug", "log-file", "port", "timeout"} {
		checkBindFlagError(viper.BindPFlag(name, flags.Lookup(name)))
	}
}

func checkBindFlagError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind flag: %v\n", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
