package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zberg/go-kasaplug/pkg/kasa"
	"github.com/zberg/go-kasaplug/pkg/psu"
)

var (
	targetHost string
	targetPlug int
)

func init() {
	rootCmd.AddCommand(sysinfoCmd)
	rootCmd.AddCommand(plugCmd)
	rootCmd.AddCommand(onCmd, offCmd, statusCmd)
	rootCmd.AddCommand(outletCmd)
	rootCmd.AddCommand(outletsCmd)

	sysinfoCmd.Flags().StringVar(&targetHost, "host", "", "Address of the plug or strip (host or host:port)")
	_ = sysinfoCmd.MarkFlagRequired("host")

	plugCmd.PersistentFlags().StringVar(&targetHost, "host", "", "Address of the plug or strip (host or host:port)")
	plugCmd.PersistentFlags().IntVar(&targetPlug, "plug", 0, "Outlet index: 0 for a single plug, 1..N for a strip outlet")
	_ = plugCmd.MarkPersistentFlagRequired("host")
	plugCmd.AddCommand(plugStatusCmd, plugOnCmd, plugOffCmd)

	outletCmd.AddCommand(outletStatusCmd, outletOnCmd, outletOffCmd)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Show the system info reported by a device",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		info, err := client.SysInfo(cmd.Context(), targetHost)
		if err != nil {
			return fmt.Errorf("error getting system info from %s: %w", targetHost, err)
		}

		fmt.Printf("Alias: %s\nModel: %s\nDevice ID: %s\nMAC: %s\nSoftware: %s\n",
			info.Alias, info.Model, info.DeviceID, info.MAC, info.SoftwareVersion)
		if info.RelayState != nil {
			fmt.Printf("Relay: %s\n", onOff(*info.RelayState != 0))
		}
		for i, c := range info.Children {
			state := "?"
			if c.State != nil {
				state = onOff(*c.State != 0)
			}
			fmt.Printf("Outlet %d: %s (%s) id=%s\n", i+1, state, c.Alias, c.ID)
		}
		return nil
	},
}

var plugCmd = &cobra.Command{
	Use:   "plug",
	Short: "Query or switch a single device outlet without a config file",
}

var plugStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the relay state of an outlet",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		on := client.PlugState(cmd.Context(), targetHost, targetPlug)
		fmt.Printf("Plug %d at %s: %s\n", targetPlug, targetHost, onOff(on))
		return nil
	},
}

var plugOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Switch an outlet on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return switchPlug(cmd, kasa.RelayOn)
	},
}

var plugOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Switch an outlet off",
	RunE: func(cmd *cobra.Command, args []string) error {
		return switchPlug(cmd, kasa.RelayOff)
	},
}

func switchPlug(cmd *cobra.Command, state kasa.RelayState) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	if err := client.SetPlugState(cmd.Context(), targetHost, targetPlug, state); err != nil {
		return fmt.Errorf("error switching plug %d at %s: %w", targetPlug, targetHost, err)
	}
	fmt.Println("Command sent successfully.")
	return nil
}

var onCmd = &cobra.Command{
	Use:   "on",
	Short: "Switch the main outlet and every enabled outlet on",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		registry.TurnSystemOn(cmd.Context())
		fmt.Println("Commands sent. Run with --verbose to see per-outlet failures.")
		return nil
	},
}

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Switch the main outlet and every enabled outlet off",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		registry.TurnSystemOff(cmd.Context())
		fmt.Println("Commands sent. Run with --verbose to see per-outlet failures.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the main outlet and every enabled outlet",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}

		fmt.Printf("PSU: %s\n", onOff(registry.SystemState(cmd.Context())))
		for _, o := range registry.Outlets()[1:] {
			if !o.Enabled {
				fmt.Printf("%s: disabled\n", o.Name)
				continue
			}
			fmt.Printf("%s: %s\n", o.Name, onOff(registry.OutletState(cmd.Context(), o.Name)))
		}
		return nil
	},
}

var outletCmd = &cobra.Command{
	Use:   "outlet",
	Short: "Query or switch one configured outlet",
}

var outletStatusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Show the state of a configured outlet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", args[0], onOff(registry.OutletState(cmd.Context(), args[0])))
		return nil
	},
}

var outletOnCmd = &cobra.Command{
	Use:   "on [name]",
	Short: "Switch a configured outlet on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		if err := registry.TurnOutletOn(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("error switching outlet %s: %w", args[0], err)
		}
		fmt.Println("Command sent successfully.")
		return nil
	},
}

var outletOffCmd = &cobra.Command{
	Use:   "off [name]",
	Short: "Switch a configured outlet off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		if err := registry.TurnOutletOff(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("error switching outlet %s: %w", args[0], err)
		}
		fmt.Println("Command sent successfully.")
		return nil
	},
}

var outletsCmd = &cobra.Command{
	Use:   "outlets",
	Short: "List configured outlets",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(registry.Outlets())
	},
}

func newClient() (*kasa.Client, error) {
	return kasa.NewClient(cfg.ClientOptions(logger)...)
}

func newRegistry() (*psu.Registry, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	outlets, err := cfg.PSU()
	if err != nil {
		return nil, err
	}
	return psu.New(client, outlets, psu.WithLogger(logger))
}
