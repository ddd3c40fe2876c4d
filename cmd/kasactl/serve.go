package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zberg/go-kasaplug/internal/config"
	"github.com/zberg/go-kasaplug/internal/server"
)

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address (default from config, :8080)")
	checkBindFlagError(viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen")))
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the PSU and outlet controls over HTTP",
	Long: `Serve the PSU and outlet controls over HTTP.

  GET  /api/psu                    {"on": bool}
  POST /api/psu/on | /api/psu/off
  GET  /api/outlets
  GET  /api/outlets/{name}         {"name": ..., "on": bool}
  POST /api/outlets/{name}/on | off

Outlet changes in the config file are applied without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}

		if path := viper.ConfigFileUsed(); path != "" {
			if _, err := os.Stat(path); err == nil {
				config.Watch(viper.GetViper(), logger, func(f config.File) error {
					outlets, err := f.PSU()
					if err != nil {
						return err
					}
					return registry.Reload(outlets)
				})
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.New(registry, logger).ListenAndServe(ctx, cfg.Server.Listen)
	},
}
