// Wifiprov-agent runs candidate WiFi network tests for a device.
//
// The agent owns the device's station configuration. It tests a candidate
// network (associate, obtain an address) without losing the known-good
// active network, applies the configured success or failure policy, and
// exposes the controller over an HTTP and WebSocket API that the wifiprov
// CLI talks to.
//
// Usage:
//
//	wifiprov-agent run [flags]
//
// See 'wifiprov-agent run --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifiprov-agent",
	Short: "WiFi provisioning agent",
	Long: `An agent that tests candidate WiFi networks for a device.

The agent drives either a simulated radio (--driver sim) or a remote device's
station over JSON-RPC (--driver rpc), and serves an API for the 'wifiprov'
command line tool.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: user config dir)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiprov-agent %s\n", version.Full())
	},
}
