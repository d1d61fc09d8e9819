package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/agent"
	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/wifi/sim"
)

// Run command flags
var (
	driverName     string
	listenAddr     string
	logLevel       string
	deviceAddr     string
	deviceUser     string
	devicePass     string
	networksFile   string
	networkFlags   []string
	associateDelay time.Duration
	dhcpDelay      time.Duration
	advertise      bool
	instanceName   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent",
	Long: `Start the provisioning agent.

On start the agent joins the active network if it is enabled, then runs the
candidate test when boot testing is enabled. It serves the API until it is
interrupted.

The simulated radio only knows the networks given with --network or
--networks; use it to exercise provisioning policies without hardware.`,
	Example: `  # Simulated radio with two networks
  wifiprov-agent run --network Office-5G=hunter22 --network Cafe

  # Simulated radio from a networks file, advertised on mDNS
  wifiprov-agent run --networks sim.yaml --mdns

  # Drive a device over JSON-RPC
  wifiprov-agent run --driver rpc --device 192.168.33.1 --device-user admin --device-pass secret

  # Verbose logging on a custom port
  wifiprov-agent run --listen :9000 --log-level debug`,
	RunE: runAgent,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&driverName, "driver", agent.DriverSim, "Station driver (sim, rpc)")
	f.StringVar(&listenAddr, "listen", agent.DefaultListen, "API listen address")
	f.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&deviceAddr, "device", "", "Device address for the rpc driver")
	f.StringVar(&deviceUser, "device-user", "", "Device username for the rpc driver")
	f.StringVar(&devicePass, "device-pass", "", "Device password for the rpc driver")
	f.StringVar(&networksFile, "networks", "", "YAML file of simulated networks")
	f.StringArrayVar(&networkFlags, "network", nil, "Simulated network as SSID or SSID=PASS (repeatable)")
	f.DurationVar(&associateDelay, "associate-delay", sim.DefaultAssociateDelay, "Simulated association time")
	f.DurationVar(&dhcpDelay, "dhcp-delay", sim.DefaultDHCPDelay, "Simulated DHCP time")
	f.BoolVar(&advertise, "mdns", false, "Advertise the agent over mDNS")
	f.StringVar(&instanceName, "instance", "", "mDNS instance name (default: host name)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	store, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var networks []sim.Network
	if networksFile != "" {
		networks, err = agent.LoadNetworks(networksFile)
		if err != nil {
			return err
		}
	}
	for _, s := range networkFlags {
		n, err := agent.ParseNetwork(s)
		if err != nil {
			return err
		}
		networks = append(networks, n)
	}

	a, err := agent.New(agent.Options{
		Store:          store,
		Driver:         driverName,
		Listen:         listenAddr,
		Device:         deviceAddr,
		DeviceUser:     deviceUser,
		DevicePass:     devicePass,
		Networks:       networks,
		AssociateDelay: associateDelay,
		DHCPDelay:      dhcpDelay,
		Advertise:      advertise,
		Instance:       instanceName,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the agent configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.Load(configPath)
		if err != nil {
			return err
		}
		data, err := store.Marshal()
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", store.Path(), data)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
